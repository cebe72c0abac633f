package attachment_test

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/turnkit/attachment"
	"github.com/petasbytes/turnkit/message"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestValidate(t *testing.T) {
	t.Run("Should accept well-formed descriptors", func(t *testing.T) {
		err := attachment.Validate([]attachment.Descriptor{
			attachment.Image(attachment.Text("https://example.com/a.png"), ""),
			attachment.File(attachment.Bytes([]byte("%PDF")), "application/pdf", ""),
		})
		assert.NoError(t, err)
	})
	tests := []struct {
		name  string
		d     attachment.Descriptor
		field string
	}{
		{"unknown kind", attachment.Descriptor{Kind: "audio", Source: attachment.Text("x")}, "Kind"},
		{"missing kind", attachment.Descriptor{Source: attachment.Text("x")}, "Kind"},
		{"file without media type", attachment.File(attachment.Text("a.txt"), "", ""), "MediaType"},
		{"image without source", attachment.Image(attachment.Source{}, "image/png"), "Source"},
		{"empty bytes", attachment.Image(attachment.Bytes(nil), ""), "Source"},
		{"nil url", attachment.Image(attachment.URL(nil), ""), "Source"},
	}
	for _, tt := range tests {
		t.Run("Should reject "+tt.name, func(t *testing.T) {
			err := attachment.Validate([]attachment.Descriptor{attachment.Image(attachment.Text("ok"), ""), tt.d})
			require.Error(t, err)
			assert.True(t, errors.Is(err, attachment.ErrInvalid))
			var verr *attachment.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, 1, verr.Index)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLooksLocal(t *testing.T) {
	assert.True(t, attachment.LooksLocal("./notes.txt"))
	assert.True(t, attachment.LooksLocal("/tmp/a.png"))
	assert.True(t, attachment.LooksLocal("dir/file"))
	assert.False(t, attachment.LooksLocal("https://example.com/a.png"))
	assert.False(t, attachment.LooksLocal("data:image/png;base64,AAAA"))
	assert.False(t, attachment.LooksLocal("s3://bucket/key"))
	assert.False(t, attachment.LooksLocal(""))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Should read local files and derive the filename", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "report.txt")
		require.NoError(t, os.WriteFile(path, []byte("quarterly numbers"), 0o600))

		parts, err := attachment.Resolve(ctx, []attachment.Descriptor{
			attachment.File(attachment.Text(path), "text/plain", ""),
		})
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Equal(t, message.PartFile, parts[0].Type)
		assert.Equal(t, "report.txt", parts[0].Filename)
		assert.Equal(t, []byte("quarterly numbers"), parts[0].Data)
		assert.Equal(t, "text/plain", parts[0].MediaType)
		assert.Empty(t, parts[0].URL)
	})

	t.Run("Should keep an explicit filename", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "raw.bin")
		require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))
		parts, err := attachment.Resolve(ctx, []attachment.Descriptor{
			attachment.File(attachment.Text(path), "application/octet-stream", "named.bin"),
		})
		require.NoError(t, err)
		assert.Equal(t, "named.bin", parts[0].Filename)
	})

	t.Run("Should pass missing paths through unchanged", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.pdf")
		parts, err := attachment.Resolve(ctx, []attachment.Descriptor{
			attachment.File(attachment.Text(missing), "application/pdf", ""),
		})
		require.NoError(t, err)
		assert.Equal(t, missing, parts[0].URL)
		assert.Nil(t, parts[0].Data)
		assert.Empty(t, parts[0].Filename)
	})

	t.Run("Should pass directories through unchanged", func(t *testing.T) {
		dir := t.TempDir()
		parts, err := attachment.Resolve(ctx, []attachment.Descriptor{
			attachment.Image(attachment.Text(dir), "image/png"),
		})
		require.NoError(t, err)
		assert.Equal(t, dir, parts[0].URL)
		assert.Nil(t, parts[0].Data)
	})

	t.Run("Should never stat URIs", func(t *testing.T) {
		u, err := url.Parse("https://example.com/cat.jpg")
		require.NoError(t, err)
		parts, err := attachment.Resolve(ctx, []attachment.Descriptor{
			attachment.Image(attachment.URL(u), "image/jpeg"),
			attachment.Image(attachment.Text("data:image/png;base64,AAAA"), ""),
		})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/cat.jpg", parts[0].URL)
		assert.Equal(t, "data:image/png;base64,AAAA", parts[1].URL)
	})

	t.Run("Should sniff image media types from bytes", func(t *testing.T) {
		parts, err := attachment.Resolve(ctx, []attachment.Descriptor{
			attachment.Image(attachment.Bytes(pngPixel), ""),
			attachment.Image(attachment.Bytes([]byte("plain words")), ""),
		})
		require.NoError(t, err)
		assert.Equal(t, "image/png", parts[0].MediaType)
		assert.Empty(t, parts[1].MediaType)
	})

	t.Run("Should preserve input order", func(t *testing.T) {
		dir := t.TempDir()
		var ds []attachment.Descriptor
		for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(name), 0o600))
			ds = append(ds, attachment.File(attachment.Text(path), "text/plain", ""))
		}
		parts, err := attachment.Resolve(ctx, ds)
		require.NoError(t, err)
		require.Len(t, parts, 4)
		for i, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
			assert.Equal(t, name, parts[i].Filename)
			assert.Equal(t, []byte(name), parts[i].Data)
		}
	})

	t.Run("Should return nothing for no attachments", func(t *testing.T) {
		parts, err := attachment.Resolve(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, parts)
	})

	t.Run("Should fail when the context is done", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := attachment.Resolve(cctx, []attachment.Descriptor{
			attachment.Image(attachment.Text("x.png"), ""),
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
