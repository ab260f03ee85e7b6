// SPDX-License-Identifier: MIT

package cookies

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jarHeader = "# Netscape HTTP Cookie File\n"

const jarEntry = ".youtube.com\tTRUE\t/\tTRUE\t1999999999\tSID\tabc123\n"

type fakeProber struct {
	err   error
	calls int
}

func (p *fakeProber) Probe(_ context.Context, _ string) error {
	p.calls++
	return p.err
}

func writeJar(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "youtube.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCheckNetscapeFormat(t *testing.T) {
	assert.NoError(t, checkNetscapeFormat([]byte(jarHeader)))
	assert.NoError(t, checkNetscapeFormat([]byte("# HTTP Cookie File\n")))
	assert.NoError(t, checkNetscapeFormat([]byte(jarEntry)))
	assert.NoError(t, checkNetscapeFormat([]byte(jarHeader+jarEntry)))

	assert.Error(t, checkNetscapeFormat([]byte("")))
	assert.Error(t, checkNetscapeFormat([]byte("   \n\n")))
	assert.Error(t, checkNetscapeFormat([]byte("name=value; other=thing\n")))
	// entry with wrong field count fails even under a valid header
	assert.Error(t, checkNetscapeFormat([]byte(jarHeader+"one\ttwo\tthree\n")))
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(&fakeProber{})
	err := s.Load("youtube", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestValidateCachesResult(t *testing.T) {
	path := writeJar(t, jarHeader+jarEntry)
	prober := &fakeProber{}
	s := NewStore(prober)
	require.NoError(t, s.Load("youtube", path))

	ok, err := s.Validate(context.Background(), "youtube")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, prober.calls)

	// second call within the TTL is served from cache
	ok, err = s.Validate(context.Background(), "youtube")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, prober.calls)
}

func TestValidateInvalidCredential(t *testing.T) {
	path := writeJar(t, jarHeader+jarEntry)
	prober := &fakeProber{err: errors.New("HTTP Error 403")}
	s := NewStore(prober)
	require.NoError(t, s.Load("youtube", path))

	ok, err := s.Validate(context.Background(), "youtube")
	require.NoError(t, err)
	assert.False(t, ok)

	// failures are cached too
	_, _ = s.Validate(context.Background(), "youtube")
	assert.Equal(t, 1, prober.calls)
}

func TestMtimeChangeInvalidatesCache(t *testing.T) {
	path := writeJar(t, jarHeader+jarEntry)
	prober := &fakeProber{}
	s := NewStore(prober)
	require.NoError(t, s.Load("youtube", path))

	_, err := s.Validate(context.Background(), "youtube")
	require.NoError(t, err)
	require.Equal(t, 1, prober.calls)

	require.NoError(t, os.WriteFile(path, []byte(jarHeader+jarEntry), 0o600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	_, err = s.Validate(context.Background(), "youtube")
	require.NoError(t, err)
	assert.Equal(t, 2, prober.calls)
}

func TestReloadRestoresPreviousOnFailure(t *testing.T) {
	good := jarHeader + jarEntry
	path := writeJar(t, good)
	prober := &fakeProber{}
	s := NewStore(prober)
	require.NoError(t, s.Load("youtube", path))

	ok, err := s.Validate(context.Background(), "youtube")
	require.NoError(t, err)
	require.True(t, ok)

	// operator drops in a jar that fails the probe
	bad := jarHeader + ".youtube.com\tTRUE\t/\tTRUE\t1999999999\tSID\texpired\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))
	prober.err = errors.New("Sign in to confirm")

	err = s.Reload(context.Background(), "youtube")
	require.Error(t, err)

	restored, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Equal(t, good, string(restored))

	statuses := s.StatusAll()
	require.Len(t, statuses, 1)
	assert.Equal(t, StateValid, statuses[0].State)
}

func TestReloadAcceptsNewCredential(t *testing.T) {
	path := writeJar(t, jarHeader+jarEntry)
	prober := &fakeProber{}
	s := NewStore(prober)
	require.NoError(t, s.Load("youtube", path))

	require.NoError(t, s.Reload(context.Background(), "youtube"))

	statuses := s.StatusAll()
	require.Len(t, statuses, 1)
	assert.Equal(t, StateValid, statuses[0].State)
}

func TestStatusWarnsOnOldJar(t *testing.T) {
	path := writeJar(t, jarHeader+jarEntry)
	old := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	s := NewStore(&fakeProber{})
	require.NoError(t, s.Load("youtube", path))

	statuses := s.StatusAll()
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Exists)
	assert.NotEmpty(t, statuses[0].Warning)
	assert.Greater(t, statuses[0].AgeHours, float64(7*24))
}

func TestAge(t *testing.T) {
	path := writeJar(t, jarHeader+jarEntry)
	s := NewStore(&fakeProber{})
	require.NoError(t, s.Load("youtube", path))

	age, err := s.Age("youtube")
	require.NoError(t, err)
	assert.Less(t, age, time.Minute)

	_, err = s.Age("vimeo")
	assert.Error(t, err)
}

func TestValidateUnknownProvider(t *testing.T) {
	s := NewStore(&fakeProber{})
	_, err := s.Validate(context.Background(), "youtube")
	assert.Error(t, err)
}
