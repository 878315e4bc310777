package conversion

import (
	"errors"
	"testing"

	"github.com/csheth/chapterdesk/internal/blocks"
)

var (
	ready = Preconditions{ChapterID: "c1"}
	slot  = blocks.InsertPosition{AfterBlockID: "p1", BeforeBlockID: "p2", Index: 1}
)

func TestOpenDialogPreconditions(t *testing.T) {
	cases := []struct {
		name string
		pre  Preconditions
		want bool
	}{
		{name: "ok", pre: ready, want: true},
		{name: "edit active", pre: Preconditions{ChapterID: "c1", EditActive: true}, want: false},
		{name: "no chapter", pre: Preconditions{}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f Flow
			if got := f.OpenDialog(tc.pre, slot); got != tc.want {
				t.Fatalf("open: got %v want %v", got, tc.want)
			}
			if f.Open() != tc.want {
				t.Fatalf("open state mismatch")
			}
		})
	}

	var f Flow
	f.OpenDialog(ready, slot)
	if f.OpenDialog(ready, blocks.InsertPosition{}) {
		t.Fatalf("second open must be a no-op while composing")
	}
	if f.Position() != slot {
		t.Fatalf("position overwritten: %+v", f.Position())
	}
}

func TestSubmitRejectsWhitespace(t *testing.T) {
	var f Flow
	f.OpenDialog(ready, slot)
	f.SetText("   \n\t ")
	if _, err := f.Submit(); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if f.Phase() != PhaseComposing {
		t.Fatalf("phase changed to %v", f.Phase())
	}
	if f.Err() == "" {
		t.Fatalf("expected inline error")
	}
}

func TestConvertAcceptFlow(t *testing.T) {
	var f Flow
	f.OpenDialog(ready, slot)
	f.SetText("She left.\n\n\"Wait,\" he said.")
	req, err := f.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if req.ChapterID != "c1" || req.Text == "" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if f.Phase() != PhasePending {
		t.Fatalf("expected pending, got %v", f.Phase())
	}
	drafted := []blocks.Block{blocks.Paragraph{Text: "She left."}, blocks.Paragraph{Text: "Wait"}}
	if !f.FinishConvert(req.Seq, drafted, nil) {
		t.Fatalf("result should be accepted")
	}
	if f.Phase() != PhaseReady || len(f.Draft()) != 2 {
		t.Fatalf("expected ready draft, got %v %d", f.Phase(), len(f.Draft()))
	}
	apply, err := f.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if apply.Position != slot || len(apply.Blocks) != 2 {
		t.Fatalf("unexpected apply request: %+v", apply)
	}
	f.FinishApply(apply.Seq, errors.New("network down"))
	if f.Phase() != PhaseReady || f.ApplyErr() == "" {
		t.Fatalf("failed apply must keep the draft, got %v %q", f.Phase(), f.ApplyErr())
	}
	if len(f.Draft()) != 2 {
		t.Fatalf("draft lost after apply failure")
	}
	apply, _ = f.Accept()
	f.FinishApply(apply.Seq, nil)
	if f.Phase() != PhaseIdle || f.Open() {
		t.Fatalf("successful apply should return to idle")
	}
}

func TestConvertFailureKeepsText(t *testing.T) {
	var f Flow
	f.OpenDialog(ready, slot)
	f.SetText("Some prose")
	req, _ := f.Submit()
	f.FinishConvert(req.Seq, nil, errors.New("backend unavailable"))
	if f.Phase() != PhaseComposing {
		t.Fatalf("expected composing, got %v", f.Phase())
	}
	if f.Text() != "Some prose" || f.Err() == "" {
		t.Fatalf("text or error lost: %q %q", f.Text(), f.Err())
	}
}

func TestStaleResultsAreIgnored(t *testing.T) {
	var f Flow
	f.OpenDialog(ready, slot)
	f.SetText("first")
	first, _ := f.Submit()
	f.CloseDialog()
	f.OpenDialog(ready, slot)
	f.SetText("second")
	second, _ := f.Submit()
	if f.FinishConvert(first.Seq, []blocks.Block{blocks.Paragraph{Text: "old"}}, nil) {
		t.Fatalf("stale result must be ignored")
	}
	if f.Phase() != PhasePending {
		t.Fatalf("stale result changed phase to %v", f.Phase())
	}
	if !f.FinishConvert(second.Seq, []blocks.Block{blocks.Paragraph{Text: "new"}}, nil) {
		t.Fatalf("current result should apply")
	}
}

func TestCloseAndRejectAreIdempotent(t *testing.T) {
	var f Flow
	f.CloseDialog()
	f.CloseDialog()
	f.Reject()
	if f.Open() {
		t.Fatalf("closed dialog should stay closed")
	}
	f.OpenDialog(ready, slot)
	f.SetText("text")
	req, _ := f.Submit()
	f.FinishConvert(req.Seq, []blocks.Block{blocks.Paragraph{Text: "x"}}, nil)
	f.CloseDialog()
	if f.Phase() != PhaseReady {
		t.Fatalf("close must not discard a ready draft")
	}
	f.Reject()
	if f.Phase() != PhaseIdle || len(f.Draft()) != 0 {
		t.Fatalf("reject should discard the draft")
	}
}

func TestEmptyConversionResultIsAnError(t *testing.T) {
	var f Flow
	f.OpenDialog(ready, slot)
	f.SetText("text")
	req, _ := f.Submit()
	f.FinishConvert(req.Seq, nil, nil)
	if f.Phase() != PhaseComposing || f.Err() != ErrEmptyResult.Error() {
		t.Fatalf("unexpected state %v %q", f.Phase(), f.Err())
	}
}
