package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"
)

// Default adapter identity and flash pipe.
const (
	defaultVID   = 0x09fb
	defaultPID   = 0x6001
	flashIface   = 1
	flashEPIn    = 3
	flashEPOut   = 4
	readPackets  = 64
	transferTime = 2 * time.Second
)

type inEndpoint interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
}

type outEndpoint interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// usbPipe is the flash IN/OUT pair as an io.ReadWriter. Bulk reads always
// ask for whole packets; bytes past what the caller wanted are kept for
// the next Read.
type usbPipe struct {
	in      inEndpoint
	out     outEndpoint
	packet  int
	timeout time.Duration

	buf     []byte
	pending []byte
}

func newUSBPipe(in inEndpoint, out outEndpoint, packet int) *usbPipe {
	if packet <= 0 {
		packet = 64
	}
	return &usbPipe{
		in:      in,
		out:     out,
		packet:  packet,
		timeout: transferTime,
		buf:     make([]byte, packet*readPackets),
	}
}

func (p *usbPipe) Read(b []byte) (int, error) {
	for len(p.pending) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		n, err := p.in.ReadContext(ctx, p.buf)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("bulk in: %w", err)
		}
		p.pending = p.buf[:n]
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *usbPipe) Write(b []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	n, err := p.out.WriteContext(ctx, b)
	if err != nil {
		return n, fmt.Errorf("bulk out: %w", err)
	}
	return n, nil
}

// usbDevice holds everything opened for the flash pipe.
type usbDevice struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	pipe *usbPipe
}

// parseBusAddr splits "BUS:ADDR". It returns -1, -1 on malformed input.
func parseBusAddr(busAddr string) (int, int) {
	s := strings.Split(busAddr, ":")
	if len(s) != 2 {
		return -1, -1
	}
	bus, err := strconv.ParseUint(s[0], 10, 8)
	if err != nil {
		return -1, -1
	}
	addr, err := strconv.ParseUint(s[1], 10, 8)
	if err != nil {
		return -1, -1
	}
	return int(bus), int(addr)
}

// openUSB finds the adapter and claims the interface carrying the flash
// pipe. A non-empty busAddr picks one adapter when several are plugged in.
func openUSB(vid, pid gousb.ID, busAddr string, iface, epIn, epOut int) (*usbDevice, error) {
	bus, addr := -1, -1
	if busAddr != "" {
		if bus, addr = parseBusAddr(busAddr); bus < 0 {
			return nil, errors.New("bad USB device address: " + busAddr)
		}
	}

	u := &usbDevice{ctx: gousb.NewContext()}
	var err error
	defer func() {
		if err != nil {
			u.Close()
		}
	}()

	devs, err := u.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if bus >= 0 && (desc.Bus != bus || desc.Address != addr) {
			return false
		}
		return desc.Vendor == vid && desc.Product == pid
	})
	if len(devs) > 0 {
		u.dev = devs[0]
		for _, d := range devs[1:] {
			_ = d.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s:%s: %w", vid, pid, err)
	}
	switch {
	case len(devs) == 0:
		err = fmt.Errorf("no adapter %s:%s found", vid, pid)
		return nil, err
	case len(devs) > 1:
		glog.Warningf("%d adapters found, using %s; pick one with -bus", len(devs), u.dev)
	}
	if err = u.dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("auto detach: %w", err)
	}
	num, err := u.dev.ActiveConfigNum()
	if err != nil {
		return nil, fmt.Errorf("active config: %w", err)
	}
	if u.cfg, err = u.dev.Config(num); err != nil {
		return nil, fmt.Errorf("config %d: %w", num, err)
	}
	if u.intf, err = u.cfg.Interface(iface, 0); err != nil {
		return nil, fmt.Errorf("interface %d: %w", iface, err)
	}
	in, err := u.intf.InEndpoint(epIn)
	if err != nil {
		return nil, fmt.Errorf("endpoint %d IN: %w", epIn, err)
	}
	out, err := u.intf.OutEndpoint(epOut)
	if err != nil {
		return nil, fmt.Errorf("endpoint %d OUT: %w", epOut, err)
	}
	u.pipe = newUSBPipe(in, out, in.Desc.MaxPacketSize)
	return u, nil
}

func (u *usbDevice) String() string {
	return u.dev.String()
}

func (u *usbDevice) Close() {
	if u.intf != nil {
		u.intf.Close()
	}
	if u.cfg != nil {
		_ = u.cfg.Close()
	}
	if u.dev != nil {
		_ = u.dev.Close()
	}
	_ = u.ctx.Close()
}
