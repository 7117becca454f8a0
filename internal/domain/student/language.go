package student

import (
	"sort"
	"strings"
)

// Language - нормализованный токен языка программирования, например "GNU".
type Language string

// ParseLanguage возвращает токен до первого пробела.
// "GNU C++17 (64)" -> "GNU", "Python 3" -> "Python", "Kotlin" -> "Kotlin".
func ParseLanguage(raw string) Language {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		return Language(raw[:i])
	}
	return Language(raw)
}

// String возвращает строковое представление языка.
func (l Language) String() string {
	return string(l)
}

// LanguageTally считает частоту языков и помнит порядок первого появления.
type LanguageTally struct {
	counts map[Language]int
	order  []Language
}

// NewLanguageTally создаёт пустой подсчёт.
func NewLanguageTally() *LanguageTally {
	return &LanguageTally{counts: make(map[Language]int)}
}

// Add учитывает ещё одно решение на языке lang.
func (t *LanguageTally) Add(lang Language) {
	if _, ok := t.counts[lang]; !ok {
		t.order = append(t.order, lang)
	}
	t.counts[lang]++
}

// Count возвращает частоту языка.
func (t *LanguageTally) Count(lang Language) int {
	return t.counts[lang]
}

// Most возвращает самый частый язык. При равенстве побеждает встреченный первым.
// ok == false, если ничего не было учтено.
func (t *LanguageTally) Most() (lang Language, ok bool) {
	best := 0
	for _, l := range t.order {
		if c := t.counts[l]; c > best {
			best = c
			lang = l
		}
	}
	return lang, best > 0
}

// TagSet - упорядоченное множество тегов задачи без дубликатов.
type TagSet []string

// NewTagSet нормализует теги: убирает пустые и повторы, сортирует.
func NewTagSet(tags ...string) TagSet {
	seen := make(map[string]struct{}, len(tags))
	out := make(TagSet, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Contains проверяет наличие тега.
func (t TagSet) Contains(tag string) bool {
	i := sort.SearchStrings(t, tag)
	return i < len(t) && t[i] == tag
}

// Strings возвращает копию тегов. Для пустого множества - пустой срез, не nil:
// колонка tags объявлена NOT NULL, а nil-срез pgx кодирует как NULL.
func (t TagSet) Strings() []string {
	return append(make([]string, 0, len(t)), t...)
}
