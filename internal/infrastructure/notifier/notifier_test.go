package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

func testStudent() *student.Student {
	last := time.Date(2024, 2, 1, 15, 0, 0, 0, time.UTC)
	return &student.Student{
		ID:                 "s1",
		Name:               "Ada <Lovelace>",
		Email:              "ada@example.com",
		CurrentRating:      1432,
		SolvedProblems:     87,
		LastSubmissionDate: &last,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRenderer_Render(t *testing.T) {
	r := Renderer{TeamName: "TLE Eliminators Team", ThresholdDays: 7}

	msg, err := r.Render(testStudent())
	require.NoError(t, err)

	assert.Equal(t, ReminderSubject, msg.Subject)
	assert.Equal(t, "ada@example.com", msg.ToEmail)
	assert.Contains(t, msg.Text, "Current Rating: 1432")
	assert.Contains(t, msg.Text, "Total Problems Solved: 87")
	assert.Contains(t, msg.Text, "Last Submission: Feb 1, 2024")
	assert.Contains(t, msg.Text, "past 7 days")
	assert.Contains(t, msg.HTML, "Hello Ada &lt;Lovelace&gt;,")
	assert.Contains(t, msg.HTML, "<li>Total Problems Solved: 87</li>")
}

func TestRenderer_NoSubmission(t *testing.T) {
	st := testStudent()
	st.LastSubmissionDate = nil

	msg, err := Renderer{ThresholdDays: 7}.Render(st)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Last Submission: N/A")
	assert.Contains(t, msg.HTML, "Last Submission: N/A")
}

func TestSendGridNotifier_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewSendGridNotifier(SendGridConfig{
		APIKey:    "test-key",
		Host:      srv.URL,
		FromName:  "Coach",
		FromEmail: "coach@example.com",
	}, Renderer{ThresholdDays: 7}, discardLogger())

	assert.True(t, n.Send(context.Background(), testStudent()))

	personalizations := got["personalizations"].([]any)
	require.Len(t, personalizations, 1)
	p := personalizations[0].(map[string]any)
	assert.Equal(t, ReminderSubject, p["subject"])
	to := p["to"].([]any)[0].(map[string]any)
	assert.Equal(t, "ada@example.com", to["email"])
}

func TestSendGridNotifier_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	n := NewSendGridNotifier(SendGridConfig{APIKey: "bad", Host: srv.URL}, Renderer{}, discardLogger())
	assert.False(t, n.Send(context.Background(), testStudent()))

	st := testStudent()
	st.Email = ""
	assert.False(t, n.Send(context.Background(), st))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, n.Send(ctx, testStudent()))
}

// stalledServer never answers until the client goes away or the test ends.
func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func TestSendGridNotifier_TimeoutOnStalledProvider(t *testing.T) {
	srv := stalledServer(t)
	n := NewSendGridNotifier(SendGridConfig{
		APIKey:  "test-key",
		Host:    srv.URL,
		Timeout: 50 * time.Millisecond,
	}, Renderer{}, discardLogger())

	start := time.Now()
	assert.False(t, n.Send(context.Background(), testStudent()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSendGridNotifier_ContextDeadlineAbortsRequest(t *testing.T) {
	srv := stalledServer(t)
	n := NewSendGridNotifier(SendGridConfig{APIKey: "test-key", Host: srv.URL}, Renderer{}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.False(t, n.Send(ctx, testStudent()))
	assert.Less(t, time.Since(start), DefaultSendGridTimeout/2, "ctx wins over the client timeout")
}

func TestLogNotifier_Send(t *testing.T) {
	n := NewLogNotifier(Renderer{ThresholdDays: 7}, discardLogger())
	assert.True(t, n.Send(context.Background(), testStudent()))
}
