package tuitest

import (
	"bytes"
	"io"
)

// queryResponder answers the terminal queries termenv and bubbletea send at
// startup. Without replies they wait for a timeout before drawing.
type queryResponder struct {
	w       io.Writer
	pending []byte
}

type termQuery struct {
	ask, reply string
}

var termQueries = []termQuery{
	{"\x1b[6n", "\x1b[1;1R"},
	{"\x1b]10;?\x07", "\x1b]10;rgb:d0d0/d0d0/d0d0\x07"},
	{"\x1b]10;?\x1b\\", "\x1b]10;rgb:d0d0/d0d0/d0d0\x1b\\"},
	{"\x1b]11;?\x07", "\x1b]11;rgb:1c1c/1c1c/1c1c\x07"},
	{"\x1b]11;?\x1b\\", "\x1b]11;rgb:1c1c/1c1c/1c1c\x1b\\"},
}

func newQueryResponder(w io.Writer) *queryResponder {
	return &queryResponder{w: w, pending: make([]byte, 0, 128)}
}

// Process scans chunk for queries. A short tail is kept between calls so a
// query split across reads is still seen.
func (q *queryResponder) Process(chunk []byte) {
	q.pending = append(q.pending, chunk...)
	for q.answerOne() {
	}
	if len(q.pending) > 256 {
		q.pending = q.pending[len(q.pending)-64:]
	}
}

func (q *queryResponder) answerOne() bool {
	for _, query := range termQueries {
		idx := bytes.Index(q.pending, []byte(query.ask))
		if idx < 0 {
			continue
		}
		q.pending = q.pending[idx+len(query.ask):]
		_, _ = q.w.Write([]byte(query.reply))
		return true
	}
	return false
}
