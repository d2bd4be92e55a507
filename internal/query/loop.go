// Package query runs every region query on one goroutine. Providers assume
// a single-threaded host, so transports and scripts submit work here instead
// of calling the registry directly.
package query

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/host"
	"regionhooks.ai/internal/protocol"
	"regionhooks.ai/internal/regions"
)

var ErrStopped = errors.New("query loop stopped")

type Request struct {
	Msg  protocol.QueryMsg
	Resp chan protocol.ResultMsg
}

type Loop struct {
	reg      *regions.Registry
	platform host.Platform
	log      *log.Logger
	lands    LandAdmin

	inbox chan Request
	exec  chan func()
	done  chan struct{}
}

func NewLoop(reg *regions.Registry, platform host.Platform, logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Loop{
		reg:      reg,
		platform: platform,
		log:      logger,
		inbox:    make(chan Request, 256),
		exec:     make(chan func(), 16),
		done:     make(chan struct{}),
	}
}

func (l *Loop) Inbox() chan<- Request { return l.inbox }

// Run serves requests until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-l.inbox:
			req.Resp <- l.safeHandle(req.Msg)
		case fn := <-l.exec:
			l.safeExec(fn)
		}
	}
}

func (l *Loop) safeHandle(msg protocol.QueryMsg) (res protocol.ResultMsg) {
	defer func() {
		if v := recover(); v != nil {
			l.log.Printf("query: %s %s panicked: %v", msg.Type, msg.ReqID, v)
			res = fail(protocol.ResultMsg{
				Type:            protocol.TypeResult,
				ProtocolVersion: protocol.Version,
				ResultFor:       msg.Type,
				ReqID:           msg.ReqID,
			}, protocol.ErrInternal, "internal error")
		}
	}()
	return l.Handle(msg)
}

func (l *Loop) safeExec(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			l.log.Printf("query: exec panicked: %v", v)
		}
	}()
	fn()
}

// Do submits msg and waits for the result.
func (l *Loop) Do(ctx context.Context, msg protocol.QueryMsg) (protocol.ResultMsg, error) {
	resp := make(chan protocol.ResultMsg, 1)
	select {
	case l.inbox <- Request{Msg: msg, Resp: resp}:
	case <-l.done:
		return protocol.ResultMsg{}, ErrStopped
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-l.done:
		return protocol.ResultMsg{}, ErrStopped
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	}
}

// Exec runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.exec <- wrapped:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle answers msg synchronously. Call it only from the loop goroutine.
func (l *Loop) Handle(msg protocol.QueryMsg) protocol.ResultMsg {
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ResultFor:       msg.Type,
		ReqID:           msg.ReqID,
	}
	if msg.ProtocolVersion != protocol.Version {
		return fail(res, protocol.ErrProtoVersion, "bad protocol_version")
	}
	switch msg.Type {
	case protocol.TypeRegionsAt:
		w, ok := l.world(msg.World)
		if !ok {
			return fail(res, protocol.ErrWorldNotFound, "unknown world "+msg.World)
		}
		found := l.reg.RegionsAt(host.At(w, msg.X, msg.Y, msg.Z))
		res.Regions = make([]protocol.RegionInfo, 0, len(found))
		for _, r := range found {
			res.Regions = append(res.Regions, Info(r))
		}
	case protocol.TypeRegionByName:
		w, ok := l.world(msg.World)
		if !ok {
			return fail(res, protocol.ErrWorldNotFound, "unknown world "+msg.World)
		}
		r, ok := l.reg.RegionByName(w, msg.Name)
		if !ok {
			return fail(res, protocol.ErrNotFound, "no region named "+msg.Name)
		}
		info := Info(r)
		res.Region = &info
	case protocol.TypeCanBuild:
		w, ok := l.world(msg.World)
		if !ok {
			return fail(res, protocol.ErrWorldNotFound, "unknown world "+msg.World)
		}
		id, err := uuid.Parse(msg.Player)
		if err != nil {
			return fail(res, protocol.ErrBadRequest, "player must be a uuid")
		}
		allowed := l.reg.CanBuild(l.platform.OfflinePlayer(id), host.At(w, msg.X, msg.Y, msg.Z))
		res.Allowed = &allowed
	case protocol.TypeRegionBlocks:
		if msg.Region == nil {
			return fail(res, protocol.ErrBadRequest, "region is required")
		}
		r, err := l.reg.Resolve(regions.Record{Type: msg.Region.Kind, Fields: regions.Fields{"id": msg.Region.ID}})
		if err != nil {
			if errors.Is(err, regions.ErrInvalidReference) {
				return fail(res, protocol.ErrStale, err.Error())
			}
			return fail(res, protocol.ErrBadRequest, err.Error())
		}
		info := Info(r)
		res.Region = &info
		res.Blocks = summarize(r)
	case protocol.TypeLandList, protocol.TypeLandCreate, protocol.TypeLandDelete, protocol.TypeLandMember:
		if l.lands == nil {
			return fail(res, protocol.ErrBadRequest, "land administration is not enabled")
		}
		return l.handleLand(msg, res)
	default:
		return fail(res, protocol.ErrProtoBadRequest, "unknown type "+msg.Type)
	}
	res.OK = true
	return res
}

// world accepts a world name or uuid.
func (l *Loop) world(name string) (*host.World, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	if w, ok := l.platform.WorldByName(name); ok {
		return w, true
	}
	if id, err := uuid.Parse(name); err == nil {
		return l.platform.World(id)
	}
	return nil, false
}

// fail marks res as failed. Codes outside the protocol table become
// E_INTERNAL so clients only ever see documented codes.
func fail(res protocol.ResultMsg, code, message string) protocol.ResultMsg {
	if code == "" || !protocol.IsKnownCode(code) {
		message = code + ": " + message
		code = protocol.ErrInternal
	}
	res.OK = false
	res.Code = code
	res.Message = message
	return res
}

// Info describes r for the wire.
func Info(r regions.Region) protocol.RegionInfo {
	info := protocol.RegionInfo{
		Kind:    r.Kind(),
		ID:      r.ID().String(),
		Label:   r.String(),
		Owners:  []string{},
		Members: []string{},
	}
	if p := r.Provider(); p != nil {
		info.Provider = p.Name()
	}
	for _, p := range r.Owners() {
		info.Owners = append(info.Owners, p.ID.String())
	}
	for _, p := range r.Members() {
		info.Members = append(info.Members, p.ID.String())
	}
	return info
}

// summarize reports the block count and bounds of r. Boxed regions are
// sized from their bounds; anything else is walked.
func summarize(r regions.Region) *protocol.BlockSummary {
	if b, ok := r.(regions.Bounded); ok {
		var sum protocol.BlockSummary
		_, box, ok := b.Bounds()
		if !ok || box.Empty() {
			return &sum
		}
		sum.Count = box.Volume()
		sum.Min = [3]int{box.Min.X, box.Min.Y, box.Min.Z}
		sum.Max = [3]int{box.Max.X, box.Max.Y, box.Max.Z}
		return &sum
	}
	var (
		sum    protocol.BlockSummary
		lo, hi geom.Vec3i
	)
	for b := range r.Blocks() {
		if sum.Count == 0 {
			lo, hi = b.Pos, b.Pos
		}
		lo = geom.Vec3i{X: min(lo.X, b.Pos.X), Y: min(lo.Y, b.Pos.Y), Z: min(lo.Z, b.Pos.Z)}
		hi = geom.Vec3i{X: max(hi.X, b.Pos.X), Y: max(hi.Y, b.Pos.Y), Z: max(hi.Z, b.Pos.Z)}
		sum.Count++
	}
	if sum.Count > 0 {
		sum.Min = [3]int{lo.X, lo.Y, lo.Z}
		sum.Max = [3]int{hi.X, hi.Y, hi.Z}
	}
	return &sum
}
