package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "roads/abc.png", want: "roads/abc.png"},
		{in: "/roads//abc.png", want: "roads/abc.png"},
		{in: `roads\abc.png`, want: "roads/abc.png"},
		{in: "", wantErr: true},
		{in: "/", wantErr: true},
		{in: "../etc/passwd", wantErr: true},
		{in: "roads/../../x", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := cleanName(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFileSink_Put(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "out"))
	require.NoError(t, err)

	// --- Act ---
	uri, err := sink.Put(context.Background(), "roads/abc.png", []byte("png-bytes"), "image/png")

	// --- Assert ---
	require.NoError(t, err)
	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.Equal(t, filepath.Join(sink.Root(), "roads", "abc.png"), filepath.FromSlash(u.Path))

	data, err := os.ReadFile(filepath.FromSlash(u.Path))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	// Overwrites are allowed and leave no temporary files behind.
	_, err = sink.Put(context.Background(), "roads/abc.png", []byte("again"), "image/png")
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(sink.Root(), "roads"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSink_RejectsEscapingNames(t *testing.T) {
	t.Parallel()
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	_, err = sink.Put(context.Background(), "../outside.png", nil, "image/png")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestFileSink_CancelledContext(t *testing.T) {
	t.Parallel()
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sink.Put(ctx, "a.png", nil, "image/png")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySink_ConcurrentPut(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	sink := NewMemorySink()
	var wg sync.WaitGroup

	// --- Act ---
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sink.Put(context.Background(), fmt.Sprintf("layer/%02d.png", i), []byte{byte(i)}, "image/png")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// --- Assert ---
	names := sink.Names()
	require.Len(t, names, 20)
	assert.Equal(t, "layer/00.png", names[0])

	obj, ok := sink.Get("mem://layer/07.png")
	require.True(t, ok)
	assert.Equal(t, []byte{7}, obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)

	_, ok = sink.Get("layer/07.png")
	assert.True(t, ok)
}

func TestMemorySink_CopiesData(t *testing.T) {
	t.Parallel()
	sink := NewMemorySink()
	data := []byte("abc")
	uri, err := sink.Put(context.Background(), "x", data, "")
	require.NoError(t, err)
	data[0] = 'z'
	obj, _ := sink.Get(uri)
	assert.Equal(t, "abc", string(obj.Data))
}

func TestNewAzureBlobSink(t *testing.T) {
	t.Parallel()

	const key = "c2VjcmV0LWtleQ==" // base64("secret-key")

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		_, err := NewAzureBlobSink(AzureBlobConfig{Container: "prints"})
		assert.ErrorContains(t, err, "connection string is required")

		_, err = NewAzureBlobSink(AzureBlobConfig{ConnectionString: "AccountName=a;AccountKey=" + key})
		assert.ErrorContains(t, err, "container name is required")

		_, err = NewAzureBlobSink(AzureBlobConfig{ConnectionString: "AccountName=a", Container: "prints"})
		assert.ErrorContains(t, err, "account name and key")
	})

	t.Run("default endpoint", func(t *testing.T) {
		t.Parallel()
		sink, err := NewAzureBlobSink(AzureBlobConfig{
			ConnectionString: "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=" + key,
			Container:        "prints",
			Prefix:           "/sweeps/",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://acct.blob.core.windows.net", sink.serviceURL)

		p, err := sink.blobPath("roads/abc.png")
		require.NoError(t, err)
		assert.Equal(t, "sweeps/roads/abc.png", p)
	})

	t.Run("azurite endpoint", func(t *testing.T) {
		t.Parallel()
		sink, err := NewAzureBlobSink(AzureBlobConfig{
			ConnectionString: "AccountName=devstoreaccount1;AccountKey=" + key + ";BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1/;",
			Container:        "prints",
		})
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:10000/devstoreaccount1", sink.serviceURL)
	})
}

func TestParseConnectionString(t *testing.T) {
	t.Parallel()
	params := parseConnectionString(" AccountName=acct ; AccountKey=a=b=; ;junk;=novalue")
	assert.Equal(t, map[string]string{"AccountName": "acct", "AccountKey": "a=b="}, params)
}
