package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		ReadIO:                 "READ_IO",
		EOF:                    "IO_EOF",
		NoMoreFrames:           "NO_MORE_FRAMES",
		UnsupportedCodecLayout: "UNSUPPORTED_CODEC_LAYOUT",
		UnderlyingCodec:        "UNDERLYING_CODEC",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("%d: got %q, want %q", status, got, want)
		}
	}
	if got := Status(999).String(); got != "STATUS(999)" {
		t.Errorf("unknown status: %q", got)
	}
}

func TestWrapPreservesStatus(t *testing.T) {
	inner := New(UnderlyingCodec, "webp.load_frame")
	outer := Wrap(ReadIO, "driver.read_frame", inner)

	if !Is(outer, UnderlyingCodec) {
		t.Errorf("wrapped status lost: %v", outer)
	}
	var ce *CodecError
	if !stderrors.As(outer, &ce) {
		t.Fatal("not a CodecError")
	}
	if ce.Status != UnderlyingCodec {
		t.Errorf("outer status %s", ce.Status)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(ReadIO, "op", nil) != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestWrapForeignError(t *testing.T) {
	err := Wrap(OpenFile, "sio.open_read", fmt.Errorf("boom"))
	if !Is(err, OpenFile) {
		t.Errorf("got %v", err)
	}
	if _, ok := StatusOf(fmt.Errorf("plain")); ok {
		t.Error("plain error must carry no status")
	}
}

func TestIsNoMoreFrames(t *testing.T) {
	if !IsNoMoreFrames(New(NoMoreFrames, "codec.seek")) {
		t.Error("sentinel not recognized")
	}
	if IsNoMoreFrames(New(ReadIO, "codec.seek")) {
		t.Error("false positive")
	}
}
