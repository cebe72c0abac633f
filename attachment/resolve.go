package attachment

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/turnkit/internal/logger"
	"github.com/petasbytes/turnkit/message"
)

// schemePrefix matches a URI scheme such as "https:" or "data:". A Windows
// drive path like "C:\x" also matches and is treated as a reference.
var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

// LooksLocal reports whether a textual source should be tried as a local
// filesystem path.
func LooksLocal(s string) bool {
	return s != "" && !schemePrefix.MatchString(s)
}

// Resolve turns descriptors into message parts, in input order. Textual
// sources that look like local paths and name a regular file are read;
// otherwise the source passes through unchanged as a reference. Resolution
// failures are never errors; Resolve fails only when ctx is done.
func Resolve(ctx context.Context, ds []Descriptor) ([]message.Part, error) {
	if len(ds) == 0 {
		return nil, nil
	}
	parts := make([]message.Part, len(ds))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range ds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i] = resolveOne(gctx, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func resolveOne(ctx context.Context, d Descriptor) message.Part {
	p := message.Part{MediaType: d.MediaType}
	switch d.Kind {
	case KindFile:
		p.Type = message.PartFile
		p.Filename = d.Filename
	default:
		p.Type = message.PartImage
	}

	switch d.Source.kind {
	case sourceBytes:
		p.Data = d.Source.data
	case sourceURL:
		p.URL = d.Source.text
	case sourceText:
		if data, path, ok := readLocal(ctx, d.Source.text); ok {
			p.Data = data
			if p.Type == message.PartFile && p.Filename == "" {
				p.Filename = filepath.Base(path)
			}
		} else {
			p.URL = d.Source.text
		}
	}

	if p.Type == message.PartImage && p.MediaType == "" && len(p.Data) > 0 {
		p.MediaType = sniffImage(p.Data)
	}
	return p
}

// readLocal reads s when it names a regular file. Any failure reports ok=false.
func readLocal(ctx context.Context, s string) (data []byte, path string, ok bool) {
	if !LooksLocal(s) {
		return nil, "", false
	}
	log := logger.FromContext(ctx)
	fi, err := os.Stat(s)
	if err != nil {
		log.Debug("Attachment source not a local file, passing through", "error", err)
		return nil, "", false
	}
	if !fi.Mode().IsRegular() {
		log.Debug("Attachment source not a regular file, passing through", "mode", fi.Mode().String())
		return nil, "", false
	}
	data, err = os.ReadFile(s)
	if err != nil {
		log.Debug("Attachment read failed, passing through", "error", err)
		return nil, "", false
	}
	return data, s, true
}

func sniffImage(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	if !strings.HasPrefix(mt, "image/") {
		return ""
	}
	return mt
}
