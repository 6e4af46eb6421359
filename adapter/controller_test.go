package adapter_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/moffa90/go-ordb3/adapter"
	"github.com/moffa90/go-ordb3/adapter/adaptertest"
	"github.com/moffa90/go-ordb3/blaster"
	"github.com/moffa90/go-ordb3/flashproto"
	"github.com/moffa90/go-ordb3/jtag"
	"github.com/moffa90/go-ordb3/jtag/jtagtest"
	"github.com/moffa90/go-ordb3/nand"
	"github.com/moffa90/go-ordb3/nand/nandtest"
)

var geom = nandtest.SmallGeometry

type rig struct {
	ctl  *adapter.Controller
	tr   *adaptertest.Transport
	chip *nandtest.Chip
	pins *jtagtest.FastLoopback
}

func newRig(t *testing.T, opts ...adapter.Option) *rig {
	t.Helper()
	r := &rig{
		tr:   adaptertest.New(),
		chip: nandtest.New(geom),
		pins: &jtagtest.FastLoopback{},
	}
	dev := nand.New(r.chip, nand.WithReadyPolls(10))
	r.ctl = adapter.New(r.tr, jtag.NewShifter(r.pins), dev, opts...)
	return r
}

// pollN runs n loop passes.
func (r *rig) pollN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := r.ctl.Poll(); err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
	}
}

func frame(t *testing.T, cmd byte, addr, data []byte, readLen int) []byte {
	t.Helper()
	f, err := flashproto.BuildRequest(cmd, addr, data, readLen)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	return f
}

// rawFrame encodes a header without validating it.
func rawFrame(cmd, addrBytes byte, writeLen, readLen uint16) []byte {
	return []byte{cmd, addrBytes, byte(writeLen), byte(writeLen >> 8), byte(readLen), byte(readLen >> 8)}
}

func TestBlasterLoopback(t *testing.T) {
	r := newRig(t)
	var enc blaster.Encoder
	data := []byte{0xAB, 0xCD, 0x01}
	enc.Data(data, true)

	r.tr.Blaster.Push(enc.Bytes())
	r.ctl.NotifyReceive(adapter.EndpointBlaster)
	r.pollN(t, 1)

	if got := r.tr.Blaster.Data(); !bytes.Equal(got, data) {
		t.Errorf("blaster reply = % x, want % x", got, data)
	}
	if st := r.ctl.Blaster(); st.BytesToShift != 0 {
		t.Errorf("BytesToShift = %d, want 0", st.BytesToShift)
	}
}

func TestBlasterWithoutNotify(t *testing.T) {
	r := newRig(t)
	var enc blaster.Encoder
	enc.Data([]byte{0x5A}, true)

	r.tr.Blaster.Push(enc.Bytes())
	r.pollN(t, 1)

	if got := r.tr.Blaster.Data(); !bytes.Equal(got, []byte{0x5A}) {
		t.Errorf("blaster reply = % x, want 5a", got)
	}
}

func TestBlasterModemStatus(t *testing.T) {
	r := newRig(t, adapter.WithModemStatus(true))
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	var enc blaster.Encoder
	enc.Data(data, true)

	r.tr.Blaster.Push(enc.Bytes())
	r.pollN(t, 1)

	var payload []byte
	for i, p := range r.tr.Blaster.Sent() {
		if len(p) < 2 || p[0] != adapter.ModemStatus[0] || p[1] != adapter.ModemStatus[1] {
			t.Fatalf("packet %d = % x, want modem status header", i, p)
		}
		if len(p) > flashproto.MaxPacketSize {
			t.Fatalf("packet %d is %d bytes", i, len(p))
		}
		payload = append(payload, p[2:]...)
	}
	if !bytes.Equal(payload, data) {
		t.Errorf("payload = % x, want % x", payload, data)
	}
}

func TestFlashRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
	}{
		{"write and read", append(rawFrame(nand.CmdProgram, 0, 4, 4), 1, 2, 3, 4)},
		{"too many address bytes", append(rawFrame(nand.CmdRead, 8, 0, 0), 0, 0, 0, 0, 0, 0, 0, 0)},
		{"short packet", []byte{nand.CmdReadID, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.tr.Flash.Push(tt.packet)
			r.ctl.NotifyReceive(adapter.EndpointFlash)
			r.pollN(t, 1)

			if n := r.tr.Flash.Buffered(); n != 0 {
				t.Errorf("Buffered() = %d after reject, want 0", n)
			}
			if req := r.ctl.FlashRequest(); !req.Idle() {
				t.Errorf("FlashRequest() = %v, want idle", req)
			}
			if len(r.chip.Commands) != 0 {
				t.Errorf("chip saw commands % x", r.chip.Commands)
			}
			if r.chip.Opens != 0 {
				t.Error("flash opened for a rejected request")
			}

			// The next valid request is served normally.
			host := adaptertest.NewHost(&r.tr.Flash, r.ctl.Poll)
			if _, err := host.Write(frame(t, nand.CmdReadID, []byte{nand.IDAddrManufacturer}, nil, 2)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			id := make([]byte, 2)
			if _, err := io.ReadFull(host, id); err != nil {
				t.Fatalf("ReadFull() error = %v", err)
			}
			if id[0] != nand.VendorMicron {
				t.Errorf("ID = % x", id)
			}
		})
	}
}

func TestFlashReadSplitsPackets(t *testing.T) {
	r := newRig(t)
	r.tr.Flash.Push(frame(t, nand.CmdReadParamPage, []byte{0}, nil, nand.ParamPageSize))
	r.pollN(t, 50)

	var sizes []int
	var data []byte
	for _, p := range r.tr.Flash.Sent() {
		if len(p) == 0 {
			continue
		}
		sizes = append(sizes, len(p))
		data = append(data, p...)
	}
	want := []int{62, 62, 62, 62, 8}
	if len(sizes) != len(want) {
		t.Fatalf("packet sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("packet sizes = %v, want %v", sizes, want)
		}
	}
	if !bytes.Equal(data, r.chip.ParamPage) {
		t.Error("parameter page data mismatch")
	}
}

func TestFlashProgramAndRead(t *testing.T) {
	r := newRig(t)
	host := adaptertest.NewHost(&r.tr.Flash, r.ctl.Poll)

	page := geom.PageAddress(5, 1)
	addr := geom.Address(page, 0)
	data := bytes.Repeat([]byte{0x12, 0x34, 0x56}, 20)

	steps := [][]byte{
		frame(t, nand.CmdProgram, addr, data, 0),
		frame(t, nand.CmdProgramConfirm, nil, nil, 0),
	}
	for _, s := range steps {
		if _, err := host.Write(s); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if _, err := host.Write(frame(t, nand.CmdReadStatus, nil, nil, 1)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	status := make([]byte, 1)
	if _, err := io.ReadFull(host, status); err != nil {
		t.Fatalf("ReadFull(status) error = %v", err)
	}
	if status[0]&nand.StatusFail != 0 {
		t.Fatalf("program status = %#x", status[0])
	}
	if got := r.chip.Page(page)[:len(data)]; !bytes.Equal(got, data) {
		t.Fatalf("chip page = % x, want % x", got, data)
	}

	if _, err := host.Write(frame(t, nand.CmdRead, addr, nil, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := host.Write(frame(t, byte(nand.Uncached), nil, nil, len(data))); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(data))
	if _, err := io.ReadFull(host, got); err != nil {
		t.Fatalf("ReadFull(page) error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back = % x, want % x", got, data)
	}
}

func TestFlashReleaseAndFPGACommands(t *testing.T) {
	var cmds []byte
	r := newRig(t, adapter.WithCommandSink(func(b byte) { cmds = append(cmds, b) }))

	r.tr.Flash.Push(frame(t, nand.CmdReadID, []byte{0}, nil, 62))
	r.pollN(t, 1)
	if r.ctl.FPGACommand(0x11) {
		t.Error("FPGACommand() accepted while the flash owns the bus")
	}

	r.pollN(t, 10)
	if !r.ctl.FlashRequest().Idle() {
		t.Fatalf("request not finished: %v", r.ctl.FlashRequest())
	}
	if r.chip.Closes == 0 {
		t.Error("flash not released after the request")
	}
	if !r.ctl.FPGACommand(0x85) {
		t.Fatal("FPGACommand() rejected with the bus idle")
	}
	r.pollN(t, 1)
	if len(cmds) != 1 || cmds[0] != 0x05 {
		t.Errorf("commands = % x, want 05", cmds)
	}
}

type fakeBoard struct {
	calls []string
}

func (b *fakeBoard) PowerUp() error   { b.calls = append(b.calls, "up"); return nil }
func (b *fakeBoard) PowerDown() error { b.calls = append(b.calls, "down"); return nil }

func TestConnectionStates(t *testing.T) {
	board := &fakeBoard{}
	r := newRig(t, adapter.WithBoard(board))

	r.tr.SetState(adapter.StateDisconnected)
	r.pollN(t, 1)
	if m := r.ctl.Sleeper().Mode(); m != adapter.SleepDeep {
		t.Errorf("sleep mode while disconnected = %v, want deep", m)
	}

	r.tr.SetState(adapter.StateSuspended)
	r.pollN(t, 2)
	if r.ctl.Powered() {
		t.Error("FPGA powered while suspended")
	}

	r.tr.SetState(adapter.StateActive)
	r.pollN(t, 2)
	if !r.ctl.Powered() {
		t.Error("FPGA unpowered while active")
	}
	if len(board.calls) != 2 || board.calls[0] != "down" || board.calls[1] != "up" {
		t.Errorf("board calls = %v, want [down up]", board.calls)
	}
}

func TestHeartbeat(t *testing.T) {
	tests := []struct {
		name        string
		modemStatus bool
		want        []byte
	}{
		{"zero length", false, []byte{}},
		{"modem status", true, adapter.ModemStatus[:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, adapter.WithModemStatus(tt.modemStatus))
			r.pollN(t, 1)
			if n := len(r.tr.Blaster.Sent()); n != 0 {
				t.Fatalf("%d packets without a tick", n)
			}

			r.ctl.Tick()
			r.pollN(t, 1)
			bl := r.tr.Blaster.Sent()
			fl := r.tr.Flash.Sent()
			if len(bl) != 1 || !bytes.Equal(bl[0], tt.want) {
				t.Errorf("blaster heartbeat = %v, want [% x]", bl, tt.want)
			}
			if len(fl) != 1 || len(fl[0]) != 0 {
				t.Errorf("flash heartbeat = %v, want one empty packet", fl)
			}
		})
	}
}

func TestHeartbeatSendErrorIgnored(t *testing.T) {
	r := newRig(t)
	r.tr.Blaster.FailSends(errors.New("stalled"))
	r.ctl.Tick()
	r.pollN(t, 1)
}

func TestHandleControl(t *testing.T) {
	r := newRig(t)

	if _, err := r.ctl.HandleControl(adapter.Setup{
		RequestType: adapter.RequestTypeVendorOut,
		Request:     adapter.RequestSetLatency,
		Value:       5,
	}, nil); err != nil {
		t.Fatalf("set latency error = %v", err)
	}
	if r.ctl.Latency() != 5*time.Millisecond {
		t.Errorf("Latency() = %v, want 5ms", r.ctl.Latency())
	}

	got, err := r.ctl.HandleControl(adapter.Setup{
		RequestType: adapter.RequestTypeVendorIn,
		Request:     adapter.RequestGetLatency,
		Length:      1,
	}, nil)
	if err != nil || len(got) != 1 || got[0] != 5 {
		t.Errorf("get latency = %v, %v; want [5]", got, err)
	}

	if _, err := r.ctl.HandleControl(adapter.Setup{RequestType: adapter.RequestTypeVendorOut, Request: 0}, nil); err != nil {
		t.Errorf("vendor reset error = %v, want ack", err)
	}

	_, err = r.ctl.HandleControl(adapter.Setup{RequestType: 0x21, Request: 0x0a}, nil)
	if !errors.Is(err, adapter.ErrUnsupportedRequest) {
		t.Errorf("class request error = %v, want ErrUnsupportedRequest", err)
	}
}

func TestBootloaderRequest(t *testing.T) {
	called := false
	r := newRig(t, adapter.WithBootloader(func() error {
		called = true
		return nil
	}))

	if _, err := r.ctl.HandleControl(adapter.Setup{
		RequestType: adapter.RequestTypeStandardOut,
		Request:     adapter.RequestSetFeature,
		Value:       adapter.FeatureBootloader,
	}, nil); err != nil {
		t.Fatalf("HandleControl() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.ctl.Run(ctx); !errors.Is(err, adapter.ErrBootloader) {
		t.Errorf("Run() error = %v, want ErrBootloader", err)
	}
	if !called {
		t.Error("bootloader hook not called")
	}
}

func TestRunStopsOnContext(t *testing.T) {
	r := newRig(t, adapter.WithLatency(1))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := r.ctl.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want DeadlineExceeded", err)
	}
	// The heartbeat ran at least once.
	var empty int
	for _, p := range r.tr.Flash.Sent() {
		if len(p) == 0 {
			empty++
		}
	}
	if empty == 0 {
		t.Error("no heartbeat packets sent")
	}
}
