package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LineSource submits every line read from r.
type LineSource struct {
	name    string
	r       io.Reader
	handler Handler
	prompt  string
	out     io.Writer
	logger  zerolog.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewLineSource creates a line source reporting itself as name.
func NewLineSource(name string, r io.Reader, h Handler, logger zerolog.Logger) *LineSource {
	return &LineSource{
		name:    name,
		r:       r,
		handler: h,
		logger:  logger.With().Str("component", "line-input").Str("source", name).Logger(),

		retryInitial: defaultRetryInitial,
		retryMax:     defaultRetryMax,
	}
}

// WithPrompt writes prompt to w before every read.
func (s *LineSource) WithPrompt(w io.Writer, prompt string) *LineSource {
	s.out = w
	s.prompt = prompt
	return s
}

// maxLineLength bounds one submitted line; longer lines are skipped.
const maxLineLength = 4096

// errLineTooLong reports a line that was skipped for exceeding maxLineLength.
var errLineTooLong = errors.New("line too long")

type lineResult struct {
	line    string
	err     error
	retryIn time.Duration
}

// Run reads until EOF or until ctx is done. An over-long line is skipped and
// a read error is retried after a back-off; neither ends the source. A read
// blocked in r is abandoned on cancellation; the reading goroutine exits
// with the next line or with EOF.
func (s *LineSource) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan lineResult)
	go s.read(ctx, lines)

	s.showPrompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-lines:
			if !ok {
				s.logger.Info().Msg("line input closed")
				return nil
			}
			switch {
			case errors.Is(res.err, errLineTooLong):
				s.logger.Warn().Int("max_length", maxLineLength).Msg("skipping over-long input line")
			case res.err != nil:
				s.logger.Error().Err(res.err).Dur("retry_in", res.retryIn).Msg("failed to read line input")
				continue
			default:
				if _, err := s.handler.Handle(ctx, s.name, res.line); err != nil {
					s.logger.Error().Err(err).Msg("submission failed")
				}
			}
			s.showPrompt()
		}
	}
}

// read delivers lines until EOF or until ctx is done.
func (s *LineSource) read(ctx context.Context, lines chan<- lineResult) {
	defer close(lines)

	br := bufio.NewReaderSize(s.r, maxLineLength)
	bo := newRetryBackOff(s.retryInitial, s.retryMax)
	for {
		line, err := readLine(br)
		if errors.Is(err, io.EOF) {
			return
		}

		res := lineResult{line: line, err: err}
		retry := err != nil && !errors.Is(err, errLineTooLong)
		if retry {
			res.retryIn = bo.NextBackOff()
		} else {
			bo.Reset()
		}

		select {
		case lines <- res:
		case <-ctx.Done():
			return
		}

		if retry && !sleepCtx(ctx, res.retryIn) {
			return
		}
	}
}

// readLine returns the next line without its line ending. A line longer than
// the reader's buffer is consumed and reported as errLineTooLong.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = br.ReadSlice('\n')
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return "", errLineTooLong
	}
	if err != nil && (!errors.Is(err, io.EOF) || len(line) == 0) {
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

func (s *LineSource) showPrompt() {
	if s.out != nil && s.prompt != "" {
		fmt.Fprint(s.out, s.prompt)
	}
}
