package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// ProgressFunc receives upload progress as a percentage. Reported values are
// monotonically non-decreasing; 100 is reported exactly when the upload has
// succeeded, and no callback fires after a failure.
type ProgressFunc func(percent int)

// Upload transfers a file as a single multipart body. There is no
// resumability: a failed transfer must be restarted from zero by the caller.
// Like every bearer-authenticated call, a 401 with a refresh credential
// present triggers one renewal and one retry; the progress high-water mark is
// kept across the retry so callbacks never run backwards.
func (g *Gateway) Upload(ctx context.Context, fileName string, data []byte, onProgress ProgressFunc) (*Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	body := buf.Bytes()
	contentType := mw.FormDataContentType()

	progress := &progressMeter{total: len(body), fn: onProgress}

	auth, renewable := g.authorization(nil)
	resp, err := g.uploadOnce(ctx, auth, body, contentType, progress)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && renewable {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()

		if _, err := g.renewAccessToken(ctx); err != nil {
			return nil, err
		}
		auth, _ = g.authorization(nil)
		resp, err = g.uploadOnce(ctx, auth, body, contentType, progress)
		if err != nil {
			return nil, &NetworkError{Err: err}
		}
		retriesTotal.Inc()
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiErrorFrom(resp.StatusCode, respBody)
	}

	progress.complete()
	uploadBytesTotal.Add(float64(len(data)))

	var doc Document
	if err := json.Unmarshal(respBody, &doc); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	return &doc, nil
}

func (g *Gateway) uploadOnce(ctx context.Context, auth [2]string, body []byte, contentType string, progress *progressMeter) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/documents", progress.reader(body))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)
	if auth[0] != "" {
		req.Header.Set(auth[0], auth[1])
	}
	resp, err := g.http.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(http.MethodPost, "0").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues(http.MethodPost, fmt.Sprint(resp.StatusCode)).Inc()
	return resp, nil
}

// progressMeter tracks bytes handed to the transport and reports percentages
// through a high-water mark, which keeps the sequence monotone even when the
// body is replayed for the post-renewal retry. Transfer progress is capped at
// 99; only complete reports 100.
type progressMeter struct {
	total int
	sent  int
	high  int
	fn    ProgressFunc
}

func (p *progressMeter) reader(body []byte) io.Reader {
	return &progressReader{r: bytes.NewReader(body), meter: p}
}

func (p *progressMeter) advance(n int) {
	if p.fn == nil || p.total == 0 {
		return
	}
	p.sent += n
	pct := p.sent * 100 / p.total
	if pct > 99 {
		pct = 99
	}
	if pct > p.high {
		p.high = pct
		p.fn(pct)
	}
}

func (p *progressMeter) complete() {
	if p.fn == nil {
		return
	}
	if p.high < 100 {
		p.high = 100
		p.fn(100)
	}
}

type progressReader struct {
	r     io.Reader
	meter *progressMeter
}

func (r *progressReader) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	if n > 0 {
		r.meter.advance(n)
	}
	return n, err
}
