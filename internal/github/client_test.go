package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(t *testing.T, mux *http.ServeMux) core.DiffProvider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	p, err := NewDiffProvider(srv.URL, discardLogger())
	require.NoError(t, err)
	return p
}

var testRepo = core.RepoRef{Owner: "acme", Name: "widgets", Token: "ghs_test"}

func TestDiffProvider_GetDiff(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/compare/base1...head1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghs_test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{
			"status": "ahead", "ahead_by": 1, "behind_by": 0, "total_commits": 1,
			"files": [
				{"filename": "a.go", "status": "modified", "additions": 3, "deletions": 1, "changes": 4, "patch": "@@ -1 +1 @@"},
				{"filename": "b.go", "status": "added", "additions": 10, "deletions": 0, "changes": 10}
			]
		}`)
	})
	p := newTestProvider(t, mux)

	got, err := p.GetDiff(context.Background(), core.DiffRequest{Repo: testRepo, Base: "base1", Head: "head1"})
	require.NoError(t, err)
	assert.Equal(t, "ahead", got.Status)
	assert.Equal(t, 1, got.AheadBy)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "@@ -1 +1 @@", got.Files[0].Patch)
	assert.Equal(t, core.DiffStats{FilesChanged: 2, Additions: 13, Deletions: 1}, got.Stats)
}

func TestDiffProvider_MissingRefs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/compare/gone...head1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/compare/orphan...head1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message": "No common ancestor"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/compare/flaky...head1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"message": "Bad Gateway"}`)
	})
	p := newTestProvider(t, mux)
	ctx := context.Background()

	_, err := p.GetDiff(ctx, core.DiffRequest{Repo: testRepo, Base: "gone", Head: "head1"})
	assert.ErrorIs(t, err, core.ErrRefNotFound)

	_, err = p.GetDiff(ctx, core.DiffRequest{Repo: testRepo, Base: "orphan", Head: "head1"})
	assert.ErrorIs(t, err, core.ErrRefNotFound)

	_, err = p.GetDiff(ctx, core.DiffRequest{Repo: testRepo, Base: "flaky", Head: "head1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrRefNotFound)
}

func TestDiffProvider_GetDiffRaw(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/compare/base1...head1", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "diff")
		fmt.Fprint(w, "diff --git a/a.go b/a.go\n")
	})
	p := newTestProvider(t, mux)

	got, err := p.GetDiffRaw(context.Background(), core.DiffRequest{Repo: testRepo, Base: "base1", Head: "head1"})
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/a.go b/a.go\n", got)
}

func TestDiffProvider_GetCommitAndPullRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/commits/head1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"sha": "head1",
			"commit": {"message": "Merge branch", "author": {"name": "Dana"}},
			"parents": [{"sha": "p1"}, {"sha": "p2"}]
		}`)
	})
	mux.HandleFunc("/repos/acme/widgets/commits/head1/pulls", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"number": 42, "title": "Fix login", "html_url": "https://github.com/acme/widgets/pull/42",
			"state": "open", "head": {"ref": "fix-login"}}]`)
	})
	p := newTestProvider(t, mux)
	ctx := context.Background()

	info, err := p.GetCommit(ctx, testRepo, "head1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, info.Parents)
	assert.Equal(t, "Dana", info.Author)

	prs, err := p.ListPullRequestsForCommit(ctx, testRepo, "head1")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, core.PullRequestInfo{
		Number:     42,
		Title:      "Fix login",
		URL:        "https://github.com/acme/widgets/pull/42",
		HeadBranch: "fix-login",
		State:      "open",
	}, prs[0])
}

func testPrivateKey(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func TestTokenProvider_CachesUntilNearExpiry(t *testing.T) {
	var calls atomic.Int32
	expiresAt := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("/app/installations/42/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		n := calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"token": "ghs_%d", "expires_at": %q}`, n, expiresAt.Format(time.RFC3339))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := NewTokenProvider(1234, testPrivateKey(t), srv.URL, discardLogger())
	require.NoError(t, err)
	now := expiresAt.Add(-time.Hour)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	tok, err := p.GetInstallationToken(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "ghs_1", tok)

	tok, err = p.GetInstallationToken(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "ghs_1", tok)
	assert.Equal(t, int32(1), calls.Load())

	now = expiresAt.Add(-time.Minute)
	tok, err = p.GetInstallationToken(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "ghs_2", tok)

	_, err = p.GetInstallationToken(ctx, 0)
	assert.Error(t, err)
}
