// Package outcome turns the terminal state of a run into a RunOutcome.
//
// Cause codes follow rsync's exit value numbering (11 file I/O, 20 signal,
// 23 partial transfer, 24 vanished source files, 30 timeout) so operators
// can look them up in its documentation.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

// Classify derives the outcome of a run. It is a pure function of st.
func Classify(st domain.ExecStatus) domain.RunOutcome {
	if st.Err != nil {
		if errors.Is(st.Err, domain.ErrLockBusy) {
			return domain.RunOutcome{
				Class:   domain.OutcomeNoop,
				Code:    domain.CodeOK,
				Message: "another run holds the lock; nothing done",
				Err:     st.Err,
			}
		}
		code := Code(st.Err)
		return domain.RunOutcome{
			Class:    domain.OutcomeFatal,
			Code:     code,
			Message:  fmt.Sprintf("%s: %v", causeName(code), st.Err),
			Warnings: st.Warnings,
			Err:      st.Err,
		}
	}

	if len(st.Warnings) > 0 {
		return domain.RunOutcome{
			Class:    domain.OutcomeWithWarnings,
			Code:     warningCode(st.Warnings),
			Message:  summarizeWarnings(st.Warnings),
			Warnings: st.Warnings,
		}
	}

	return domain.RunOutcome{
		Class:   domain.OutcomeSuccess,
		Code:    domain.CodeOK,
		Message: fmt.Sprintf("%d changes applied", len(st.Applied)),
	}
}

// Code maps a fatal error to its exit code
func Code(err error) int {
	var te *domain.TransferError
	switch {
	case err == nil:
		return domain.CodeOK
	case errors.Is(err, domain.ErrInterrupted), errors.Is(err, context.Canceled):
		return domain.CodeSignal
	case errors.Is(err, context.DeadlineExceeded):
		return domain.CodeTimeout
	case errors.As(err, &te) && te.Code != 0:
		return te.Code
	case errors.Is(err, domain.ErrConfigInvalid), errors.Is(err, domain.ErrConfigNotFound):
		return domain.ExitConfig
	case errors.Is(err, domain.ErrPathNotFound):
		return domain.ExitSourceMissing
	case errors.Is(err, domain.ErrPathNotCreatable), errors.Is(err, domain.ErrDestNotWritable):
		return domain.ExitDestNotWritable
	default:
		return domain.CodeFileIO
	}
}

// warningCode picks the code reported alongside a warnings-only outcome.
// Partial transfer outranks vanished files, as in rsync.
func warningCode(ws []domain.Warning) int {
	code := domain.CodeOK
	for _, w := range ws {
		if w.Code == domain.CodePartial {
			return domain.CodePartial
		}
		if w.Code > code {
			code = w.Code
		}
	}
	return code
}

func summarizeWarnings(ws []domain.Warning) string {
	counts := make(map[int]int)
	for _, w := range ws {
		counts[w.Code]++
	}
	codes := make([]int, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Ints(codes)

	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		parts = append(parts, fmt.Sprintf("%d %s (code %d)", counts[c], causeName(c), c))
	}
	return "completed with warnings: " + strings.Join(parts, ", ")
}

func causeName(code int) string {
	switch code {
	case domain.CodeOK:
		return "ok"
	case domain.ExitConfig:
		return "configuration error"
	case domain.ExitSourceMissing:
		return "source missing"
	case domain.ExitDestNotWritable:
		return "destination not writable"
	case domain.CodeFileIO:
		return "file I/O error"
	case domain.CodeSignal:
		return "interrupted by signal"
	case domain.CodePartial:
		return "partial transfer"
	case domain.CodeVanished:
		return "source files vanished"
	case domain.CodeTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Describe renders a one-line diagnosis for operators
func Describe(o domain.RunOutcome) string {
	switch o.Class {
	case domain.OutcomeSuccess:
		return "sync succeeded"
	case domain.OutcomeNoop:
		return "sync skipped: " + o.Message
	case domain.OutcomeWithWarnings:
		return "sync succeeded with warnings: " + strings.TrimPrefix(o.Message, "completed with warnings: ")
	default:
		return fmt.Sprintf("sync failed (exit %d): %s", o.ExitCode(), o.Message)
	}
}
