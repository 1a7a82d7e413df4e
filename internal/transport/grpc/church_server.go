package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"sanctuary/backend/internal/domain"
	"sanctuary/backend/internal/remoteconfig"
	"sanctuary/backend/internal/sermoncache"
	"sanctuary/backend/internal/sermons"
	"sanctuary/backend/internal/service/events"
	"sanctuary/backend/internal/store"
)

const (
	eventsFallbackMessage  = "Error loading events"
	sermonsFallbackMessage = "No recent sermons found"
	authRequiredMessage    = "Authentication required"

	upcomingPreview = 4
)

type eventsService interface {
	Create(ctx context.Context, in events.CreateInput) (domain.Event, error)
	Update(ctx context.Context, in events.UpdateInput) (domain.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListUpcoming(ctx context.Context, now time.Time) ([]domain.Event, error)
	SyncRecurring(ctx context.Context, now time.Time) (events.SyncReport, error)
}

type sermonCache interface {
	LatestSermon(ctx context.Context) domain.Sermon
	Livestream(ctx context.Context) *domain.Sermon
	Invalidate(ctx context.Context, slot sermoncache.Slot) error
}

type sermonArchive interface {
	Years(ctx context.Context) ([]string, error)
	Months(ctx context.Context, year string) ([]string, error)
	Sermons(ctx context.Context, year, month string) ([]sermons.Sermon, error)
	AllSermons(ctx context.Context) ([]sermons.Sermon, error)
}

type featureFlags interface {
	Bool(ctx context.Context, key string) bool
}

type ChurchDeps struct {
	Events  eventsService
	Cache   sermonCache
	Archive sermonArchive
	Flags   featureFlags
	// Location is where upcoming dates of recurring events are computed.
	Location *time.Location
	Now      func() time.Time
}

type ChurchServer struct {
	events  eventsService
	cache   sermonCache
	archive sermonArchive
	flags   featureFlags
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger
}

var _ ChurchServiceServer = (*ChurchServer)(nil)

func NewChurchServer(deps ChurchDeps, log *slog.Logger) *ChurchServer {
	if log == nil {
		log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &ChurchServer{
		events:  deps.Events,
		cache:   deps.Cache,
		archive: deps.Archive,
		flags:   deps.Flags,
		loc:     deps.Location,
		now:     deps.Now,
		log:     log.With(slog.String("component", "grpc.church")),
	}
}

type eventView struct {
	domain.Event
	EndDate         domain.Instant   `json:"endDate"`
	RecurrenceLabel string           `json:"recurrenceLabel,omitempty"`
	UpcomingDates   []domain.Instant `json:"upcomingDates,omitempty"`
}

func (s *ChurchServer) toEventView(ev domain.Event, now time.Time) eventView {
	view := eventView{
		Event:           ev,
		EndDate:         domain.NewInstant(ev.End()),
		RecurrenceLabel: ev.RecurrenceType.Label(),
	}
	if ev.RecurrenceType.IsRecurring() {
		for _, t := range domain.UpcomingOccurrences(ev.StartDate.In(s.loc), ev.RecurrenceType, now, upcomingPreview) {
			view.UpcomingDates = append(view.UpcomingDates, domain.NewInstant(t))
		}
	}
	return view
}

type eventPayload struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Location       string         `json:"location"`
	LocationURL    string         `json:"locationUrl"`
	StartDate      domain.Instant `json:"startDate"`
	EndDate        domain.Instant `json:"endDate"`
	RecurrenceType string         `json:"recurrenceType"`
	ParentEventID  string         `json:"parentEventId"`
	IsPublished    bool           `json:"isPublished"`
}

// ListEvents brings recurring events forward and then lists what is upcoming.
// A failed sync is logged and the listing still goes ahead; a failed listing
// returns an empty list with a display message.
func (s *ChurchServer) ListEvents(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListEvents"))
	now := s.now()

	if _, err := s.events.SyncRecurring(ctx, now); err != nil {
		log.Warn("event sync before listing failed", slog.Any("err", err))
	}

	list, err := s.events.ListUpcoming(ctx, now)
	if err != nil {
		log.Error("events list failed", slog.Any("err", err))
		return toStruct(map[string]any{"events": []eventView{}, "error": eventsFallbackMessage})
	}

	out := make([]eventView, 0, len(list))
	for _, ev := range list {
		out = append(out, s.toEventView(ev, now))
	}
	log.Debug("events listed", slog.Int("count", len(out)))
	return toStruct(map[string]any{"events": out})
}

func (s *ChurchServer) SyncEvents(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "SyncEvents"))

	report, err := s.events.SyncRecurring(ctx, s.now())
	if err != nil {
		log.Error("event sync failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return toStruct(map[string]any{
		"deleted":  report.Deleted,
		"current":  report.Current,
		"advanced": report.Advanced,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	})
}

func (s *ChurchServer) CreateEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateEvent"))

	var in eventPayload
	if err := fromStruct(req, &in); err != nil {
		log.Warn("invalid request", slog.String("reason", "decode"), slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, "invalid event payload")
	}
	var parent *uuid.UUID
	if strings.TrimSpace(in.ParentEventID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(in.ParentEventID))
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
			return nil, status.Error(codes.InvalidArgument, "parent_event_id must be a UUID")
		}
		parent = &id
	}

	ev, err := s.events.Create(ctx, events.CreateInput{
		Title:          in.Title,
		Description:    in.Description,
		Location:       in.Location,
		LocationURL:    in.LocationURL,
		StartDate:      in.StartDate.Time,
		EndDate:        in.EndDate.Time,
		RecurrenceType: in.RecurrenceType,
		ParentEventID:  parent,
		IsPublished:    in.IsPublished,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.eventError(log, "event create failed", err)
	}

	log.Info("event created",
		slog.String("event_id", ev.ID.String()),
		slog.Time("start_date", ev.StartDate.Time),
		slog.String("recurrence_type", string(ev.RecurrenceType)),
	)
	return toStruct(map[string]any{"event": s.toEventView(ev, s.now())})
}

func (s *ChurchServer) UpdateEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "UpdateEvent"))

	var in eventPayload
	if err := fromStruct(req, &in); err != nil {
		log.Warn("invalid request", slog.String("reason", "decode"), slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, "invalid event payload")
	}
	id, err := uuid.Parse(strings.TrimSpace(in.ID))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "id must be a UUID")
	}

	ev, err := s.events.Update(ctx, events.UpdateInput{
		ID:             id,
		Title:          in.Title,
		Description:    in.Description,
		Location:       in.Location,
		LocationURL:    in.LocationURL,
		StartDate:      in.StartDate.Time,
		EndDate:        in.EndDate.Time,
		RecurrenceType: in.RecurrenceType,
		IsPublished:    in.IsPublished,
	})
	if err != nil {
		return nil, s.eventError(log.With(slog.String("event_id", id.String())), "event update failed", err)
	}

	log.Info("event updated", slog.String("event_id", ev.ID.String()), slog.Time("start_date", ev.StartDate.Time))
	return toStruct(map[string]any{"event": s.toEventView(ev, s.now())})
}

func (s *ChurchServer) DeleteEvent(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	log := s.log.With(slog.String("rpc", "DeleteEvent"))

	id, err := uuid.Parse(strings.TrimSpace(stringField(req, "id")))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "id must be a UUID")
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return nil, s.eventError(log.With(slog.String("event_id", id.String())), "event delete failed", err)
	}

	log.Info("event deleted", slog.String("event_id", id.String()))
	return &emptypb.Empty{}, nil
}

func (s *ChurchServer) eventError(log *slog.Logger, msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		log.Info("event not found")
		return status.Error(codes.NotFound, "event not found")
	}
	if errors.Is(err, store.ErrIdempotencyConflict) {
		log.Info("event create idempotency conflict")
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different event. Try again.")
	}
	var vErr *events.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, vErr.Error())
	}
	log.Error(msg, slog.Any("err", err))
	return status.Error(codes.Internal, "internal error")
}

// GetLatestSermon always answers with a sermon record. Placeholders come with
// the display message instead of a playable item.
func (s *ChurchServer) GetLatestSermon(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	sermon := s.cache.LatestSermon(ctx)
	if !sermon.HasContent() {
		return toStruct(map[string]any{"sermon": sermon, "available": false, "message": sermonsFallbackMessage})
	}
	return toStruct(map[string]any{"sermon": sermon, "available": true})
}

// GetLivestream answers with a null livestream when none is scheduled or the
// feature is switched off.
func (s *ChurchServer) GetLivestream(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.flags != nil && !s.flags.Bool(ctx, remoteconfig.LivestreamEnabled) {
		return toStruct(map[string]any{"livestream": nil, "enabled": false})
	}
	return toStruct(map[string]any{"livestream": s.cache.Livestream(ctx), "enabled": true})
}

func (s *ChurchServer) InvalidateSermonCache(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	log := s.log.With(slog.String("rpc", "InvalidateSermonCache"))

	slots := []sermoncache.Slot{sermoncache.SlotSermon, sermoncache.SlotLivestream}
	if slot := strings.TrimSpace(stringField(req, "slot")); slot != "" {
		slots = []sermoncache.Slot{sermoncache.Slot(strings.ToLower(slot))}
	}
	for _, slot := range slots {
		if err := s.cache.Invalidate(ctx, slot); err != nil {
			log.Warn("invalid request", slog.String("slot", string(slot)), slog.Any("err", err))
			return nil, status.Error(codes.InvalidArgument, "slot must be sermon or livestream")
		}
	}
	log.Info("sermon cache invalidated", slog.Int("slots", len(slots)))
	return &emptypb.Empty{}, nil
}

func (s *ChurchServer) ListSermonYears(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	years, err := s.archive.Years(ctx)
	if err != nil {
		return s.archiveFallback("ListSermonYears", "years", err)
	}
	return toStruct(map[string]any{"years": nonNil(years)})
}

func (s *ChurchServer) ListSermonMonths(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	year := strings.TrimSpace(stringField(req, "year"))
	if year == "" {
		return nil, status.Error(codes.InvalidArgument, "year is required")
	}
	months, err := s.archive.Months(ctx, year)
	if err != nil {
		return s.archiveFallback("ListSermonMonths", "months", err)
	}
	return toStruct(map[string]any{"months": nonNil(months)})
}

func (s *ChurchServer) ListSermons(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	year := strings.TrimSpace(stringField(req, "year"))
	month := strings.TrimSpace(stringField(req, "month"))
	if year == "" || month == "" {
		return nil, status.Error(codes.InvalidArgument, "year and month are required")
	}
	list, err := s.archive.Sermons(ctx, year, month)
	if err != nil {
		return s.archiveFallback("ListSermons", "sermons", err)
	}
	return toStruct(map[string]any{"sermons": nonNil(list)})
}

func (s *ChurchServer) ListAllSermons(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	list, err := s.archive.AllSermons(ctx)
	if err != nil {
		return s.archiveFallback("ListAllSermons", "sermons", err)
	}
	return toStruct(map[string]any{"sermons": nonNil(list)})
}

func (s *ChurchServer) archiveFallback(rpc, field string, err error) (*structpb.Struct, error) {
	msg := sermonsFallbackMessage
	if errors.Is(err, sermons.ErrUnauthorized) {
		msg = authRequiredMessage
	}
	s.log.Warn("sermon archive unavailable", slog.String("rpc", rpc), slog.Any("err", err))
	return toStruct(map[string]any{field: []any{}, "error": msg})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// toStruct converts a JSON-encodable value into a Struct through its JSON form,
// so the wire shape matches the domain types' JSON tags.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, dst any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
