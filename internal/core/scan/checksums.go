package scan

import (
	"context"
	"io"

	"github.com/Ning0612/mirrorsync/internal/adapter"
	"github.com/Ning0612/mirrorsync/internal/core/checksum"
)

// FillChecksums hashes the regular files present on both sides with equal
// sizes, the only pairs where a content comparison can change the verdict.
// Entries that cannot be read keep an empty checksum and fall back to the
// mtime comparison.
func FillChecksums(ctx context.Context, h *checksum.Hasher, srcAdp, dstAdp adapter.Adapter, src, dst *Result) error {
	for p, s := range src.Entries {
		d, ok := dst.Entries[p]
		if !ok || !s.IsFile() || !d.IsFile() || s.Size != d.Size {
			continue
		}

		sum, err := sumOf(ctx, h, srcAdp, p)
		if isCtxErr(err) {
			return err
		}
		if err != nil {
			continue
		}
		s.Checksum = sum
		src.Entries[p] = s

		sum, err = sumOf(ctx, h, dstAdp, p)
		if isCtxErr(err) {
			return err
		}
		if err != nil {
			continue
		}
		d.Checksum = sum
		dst.Entries[p] = d
	}
	return nil
}

func sumOf(ctx context.Context, h *checksum.Hasher, adp adapter.Adapter, p string) (string, error) {
	return h.SumFile(ctx, func() (io.ReadCloser, error) { return adp.Read(ctx, p) })
}
