// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"io"
)

// A ProgressFunc is called as request body bytes are written or
// response body bytes are read.
//
// Parameter pct is the percentage transferred so far in the range
// [0, 100], or -1 if the total size is unknown. Parameters done and
// total are byte counts; total is -1 when unknown, for example on a
// chunked response with no Content-Length.
//
// A ProgressFunc is called from the goroutine performing the transfer,
// so it should return quickly and must not retain the execution's
// buffers.
type ProgressFunc func(pct float64, done, total int64)

// ProgressReader wraps a reader so that every successful read reports
// cumulative progress to f. If f is nil the reader is returned
// unwrapped, save for a no-op Close added if r is not already an
// io.ReadCloser. Closing the returned reader closes r if r implements
// io.Closer.
func ProgressReader(r io.Reader, total int64, f ProgressFunc) io.ReadCloser {
	if f == nil {
		if rc, ok := r.(io.ReadCloser); ok {
			return rc
		}
		return io.NopCloser(r)
	}
	return &progressReader{r: r, f: f, total: total}
}

type progressReader struct {
	r     io.Reader
	f     ProgressFunc
	done  int64
	total int64
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.done += int64(n)
		pr.f(progressPct(pr.done, pr.total), pr.done, pr.total)
	}
	return n, err
}

func (pr *progressReader) Close() error {
	if c, ok := pr.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func progressPct(done, total int64) float64 {
	if total <= 0 {
		return -1
	}
	pct := float64(done) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
