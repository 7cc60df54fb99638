package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice-backend/internal/domain"
	"backoffice-backend/pkg/client"
)

func TestUploadStateMachineProgression(t *testing.T) {
	uploads := client.NewUploads(0)
	ctx := uploads.Start(context.Background(), "imp-1")
	require.NoError(t, ctx.Err())

	require.Equal(t, client.UploadStateUploading, uploads.Get("imp-1").State)

	var states []string
	for _, pct := range []int{10, 55, 100} {
		uploads.SetProgress("imp-1", pct)
		states = append(states, uploads.Get("imp-1").State)
	}
	assert.Equal(t, []string{
		client.UploadStateUploading,
		client.UploadStateUploading,
		client.UploadStateProcessing,
	}, states)
	assert.Equal(t, 100, uploads.Get("imp-1").Progress)

	uploads.Fail("imp-1", "analysis rejected: malformed rows")
	session := uploads.Get("imp-1")
	assert.Equal(t, client.UploadStateError, session.State)
	assert.Equal(t, "analysis rejected: malformed rows", session.Err)
}

func TestUploadCompleteCarriesResult(t *testing.T) {
	uploads := client.NewUploads(0)
	uploads.Start(context.Background(), "imp-1")
	uploads.SetProgress("imp-1", 100)

	uploads.Complete("imp-1", &domain.PosImport{
		ID: "imp-1", Status: domain.ImportStatusAnalyzed, DuplicateCount: 2,
	})
	session := uploads.Get("imp-1")
	require.Equal(t, client.UploadStateComplete, session.State)
	require.NotNil(t, session.Result)
	assert.Equal(t, 2, session.Result.DuplicateCount)
}

func TestCancelRemovesSessionAtAnyState(t *testing.T) {
	for _, setup := range []struct {
		name     string
		progress int
	}{
		{"while uploading", 40},
		{"while processing", 100},
	} {
		t.Run(setup.name, func(t *testing.T) {
			uploads := client.NewUploads(0)
			ctx := uploads.Start(context.Background(), "imp-1")
			uploads.SetProgress("imp-1", setup.progress)

			uploads.Cancel("imp-1")

			assert.Nil(t, uploads.Get("imp-1"), "canceled session must be gone, not errored")
			assert.Zero(t, uploads.Len())
			assert.Error(t, ctx.Err(), "cancel must abort the in-flight call")
		})
	}
}

func TestSettledSessionIgnoresLateProgress(t *testing.T) {
	uploads := client.NewUploads(0)
	uploads.Start(context.Background(), "imp-1")
	uploads.SetProgress("imp-1", 100)
	uploads.Fail("imp-1", "server rejected")

	uploads.SetProgress("imp-1", 50)
	assert.Equal(t, client.UploadStateError, uploads.Get("imp-1").State)
}

func TestExternallyCanceledUploadRemovesSession(t *testing.T) {
	analyzeStarted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/analyze") {
			// Drain the body so the server notices the client disconnect
			// and cancels r.Context(); with unread body bytes pending the
			// runtime's HTTP server never observes the close.
			io.Copy(io.Discard, r.Body)
			close(analyzeStarted)
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.PosImport{ID: "imp-1", Status: domain.ImportStatusPending})
	}))
	defer srv.Close()

	feature := client.NewPosImports(client.NewAPI(srv.URL, client.APIOptions{Scope: "company-1"}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := feature.Upload(ctx, "sales.xlsx",
			[]domain.PosRow{{ReceiptNumber: "R-1", Amount: 10}}, nil)
		done <- err
	}()
	<-analyzeStarted
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled upload never settled")
	}

	// The session must not linger after a cancellation the user did not
	// route through Cancel themselves.
	assert.Nil(t, feature.Uploads.Get("imp-1"))
	assert.Zero(t, feature.Uploads.Len())
}
