package restserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/moonshade/internal/content"
	"github.com/chrissnell/moonshade/internal/log"
	"github.com/chrissnell/moonshade/internal/store"
	"github.com/chrissnell/moonshade/pkg/lunar"
	"github.com/chrissnell/moonshade/pkg/responseformat"
	"github.com/chrissnell/moonshade/pkg/shading"
	"github.com/chrissnell/moonshade/pkg/solar"
)

const (
	maxBodyBytes = 1 << 16

	defaultFrames   = 12
	maxFrames       = 60
	defaultGIFSize  = 200
	maxGIFSize      = 512
	defaultGIFDelay = 8

	defaultLogLimit = 100

	// renderers are kept per texture seed; the set is reset past this size
	maxRenderers = 16
)

var (
	// dates outside this range are rejected; the series loses accuracy
	// beyond it
	minDate = time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(2126, 1, 1, 0, 0, 0, 0, time.UTC)

	errDateRange = errors.New("date must be between 1925-01-01 and 2125-12-31")
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
	now        func() time.Time

	mu        sync.Mutex
	renderers map[int64]*shading.Renderer
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
		now:        time.Now,
		renderers:  make(map[int64]*shading.Renderer),
	}
}

// GetPhase returns the phase snapshot for ?date=, with sun times and limb
// orientation when an observer location is known
func (h *Handlers) GetPhase(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	t, date, err := h.parseDate(q.Get("date"))
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	lat, lon, hasLocation, err := h.observer(q)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	snap := lunar.Calculate(t)
	if !snap.Valid() {
		h.writeError(w, req, http.StatusInternalServerError, "unable to compute moon age")
		return
	}

	resp := PhaseResponse{
		Date:         date,
		Time:         snap.Time,
		Age:          snap.Age,
		Name:         snap.Name,
		Illumination: snap.Illumination,
		Elongation:   snap.Elongation,
		IsWaxing:     snap.IsWaxing,
	}

	if fav, err := h.controller.Store.IsFavorite(req.Context(), date); err != nil {
		log.Warnw("error checking favorite", "date", date, "error", err)
	} else {
		resp.Favorite = fav
	}

	if hasLocation {
		o := lunar.OrientationAt(t, lat, lon)
		resp.Orientation = &OrientationResponse{
			BrightLimbAngle:  o.BrightLimbAngle,
			ParallacticAngle: o.ParallacticAngle,
			LocalTerminator:  o.LocalTerminator,
			Rotation:         o.Rotation,
		}
		sun, rises := solar.SunTimes(t, lat, lon)
		resp.Sun = &SunResponse{Sun: sun, Rises: rises}
	}

	h.write(w, req, http.StatusOK, resp)
}

// GetNames returns the table of named days
func (h *Handlers) GetNames(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, lunar.PhaseNames())
}

// GetMoonPNG renders the moon for ?date= as a PNG. size, seed and an
// observer location are optional.
func (h *Handlers) GetMoonPNG(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	t, _, err := h.parseDate(q.Get("date"))
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	size, err := intParam(q, "size", h.controller.renderConfig.Size, 1, shading.MaxSize)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	seed, err := h.seed(q)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	lat, lon, hasLocation, err := h.observer(q)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	r := h.renderer(seed)
	rotation := r.Rotation
	if hasLocation {
		rotation = lunar.OrientationAt(t, lat, lon).Rotation
	}

	img, err := r.RenderRotated(req.Context(), lunar.MoonAge(t), size, rotation)
	if err != nil {
		log.Errorw("error rendering moon", "date", t, "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error rendering moon")
		return
	}

	var buf bytes.Buffer
	if err := shading.EncodePNG(&buf, img); err != nil {
		log.Errorw("error encoding moon", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error encoding moon")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// GetTransitionGIF animates the moon from ?from= to ?to=
func (h *Handlers) GetTransitionGIF(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		h.writeError(w, req, http.StatusBadRequest, "from and to parameters are required")
		return
	}
	from, _, err := h.parseDate(q.Get("from"))
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, _, err := h.parseDate(q.Get("to"))
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, "to: "+err.Error())
		return
	}
	frames, err := intParam(q, "frames", defaultFrames, 2, maxFrames)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	size, err := intParam(q, "size", defaultGIFSize, 1, maxGIFSize)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	delay, err := intParam(q, "delay", defaultGIFDelay, 1, 100)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	seed, err := h.seed(q)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	images, err := h.renderer(seed).Transition(req.Context(), lunar.MoonAge(from), lunar.MoonAge(to), frames, size)
	if err != nil {
		log.Errorw("error rendering transition", "from", from, "to", to, "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error rendering transition")
		return
	}

	var buf bytes.Buffer
	if err := shading.EncodeGIF(&buf, images, delay); err != nil {
		log.Errorw("error encoding transition", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error encoding transition")
		return
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// GetContent returns generated trivia, message and observing advice for
// ?date=
func (h *Handlers) GetContent(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	t, date, err := h.parseDate(q.Get("date"))
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	lat, lon, hasLocation, err := h.observer(q)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	snap := lunar.Calculate(t)
	cr := content.Request{
		Date:      date,
		MoonAge:   snap.Age,
		PhaseName: snap.Name,
	}
	if hasLocation {
		if sun, ok := solar.SunTimes(t, lat, lon); ok {
			cr.Sunset = sun.Sunset
		}
	}

	c := h.controller.Content.Generate(req.Context(), cr)
	h.write(w, req, http.StatusOK, ContentResponse{Date: date, Content: c})
}

// GetHistory returns recently viewed dates, newest first
func (h *Handlers) GetHistory(w http.ResponseWriter, req *http.Request) {
	entries, err := h.controller.Store.History(req.Context())
	if err != nil {
		log.Errorw("error reading history", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error reading history")
		return
	}
	h.write(w, req, http.StatusOK, HistoryResponse{History: entries})
}

// AddHistory records a viewed date
func (h *Handlers) AddHistory(w http.ResponseWriter, req *http.Request) {
	var body DateRequest
	if err := decodeBody(w, req, &body); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	t, date, err := h.parseDate(body.Date)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	snap := lunar.Calculate(t)
	entry, err := h.controller.Store.AddHistory(req.Context(), store.HistoryEntry{
		Date:      date,
		MoonAge:   snap.Age,
		PhaseName: snap.Name,
		ViewedAt:  h.now(),
	})
	if err != nil {
		log.Errorw("error adding history", "date", date, "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error adding history")
		return
	}
	h.write(w, req, http.StatusCreated, entry)
}

// GetFavorites returns favorite dates in the order they were added
func (h *Handlers) GetFavorites(w http.ResponseWriter, req *http.Request) {
	favs, err := h.controller.Store.Favorites(req.Context())
	if err != nil {
		log.Errorw("error reading favorites", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error reading favorites")
		return
	}
	h.write(w, req, http.StatusOK, FavoritesResponse{Favorites: favs})
}

// AddFavorite marks a date as a favorite. Adding it twice is not an error.
func (h *Handlers) AddFavorite(w http.ResponseWriter, req *http.Request) {
	var body DateRequest
	if err := decodeBody(w, req, &body); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	_, date, err := h.parseDate(body.Date)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.controller.Store.AddFavorite(req.Context(), date); err != nil {
		log.Errorw("error adding favorite", "date", date, "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error adding favorite")
		return
	}
	h.write(w, req, http.StatusCreated, DateRequest{Date: date})
}

// RemoveFavorite deletes /favorites/{date}
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, req *http.Request) {
	date := mux.Vars(req)["date"]

	err := h.controller.Store.RemoveFavorite(req.Context(), date)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, req, http.StatusNotFound, "favorite not found")
	case err != nil:
		log.Errorw("error removing favorite", "date", date, "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error removing favorite")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearData removes all history, favorites, settings and cached content
func (h *Handlers) ClearData(w http.ResponseWriter, req *http.Request) {
	if err := h.controller.Store.Clear(req.Context()); err != nil {
		log.Errorw("error clearing data", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error clearing data")
		return
	}
	// the stored key is gone; fall back to the configured one
	if err := h.controller.Content.SetAPIKey(req.Context(), h.controller.DefaultAPIKey); err != nil {
		log.Warnw("error restoring configured API key", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings reports whether generated content comes from a model
func (h *Handlers) GetSettings(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, SettingsResponse{UsesModel: h.controller.Content.UsesModel()})
}

// SetAPIKey stores a Gemini API key and switches the content service to
// it. An empty key turns the model off.
func (h *Handlers) SetAPIKey(w http.ResponseWriter, req *http.Request) {
	var body APIKeyRequest
	if err := decodeBody(w, req, &body); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	key := strings.TrimSpace(body.APIKey)
	ctx := req.Context()

	prev, err := h.controller.Store.Setting(ctx, store.SettingAPIKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Errorw("error reading API key", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error reading API key")
		return
	}

	// persist first so the running service never uses a key that was not saved
	if err := h.controller.Store.SaveSetting(ctx, store.SettingAPIKey, key); err != nil {
		log.Errorw("error saving API key", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "error saving API key")
		return
	}
	if err := h.controller.Content.SetAPIKey(ctx, key); err != nil {
		if rerr := h.controller.Store.SaveSetting(ctx, store.SettingAPIKey, prev); rerr != nil {
			log.Errorw("error restoring previous API key", "error", rerr)
		}
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	h.write(w, req, http.StatusOK, SettingsResponse{UsesModel: h.controller.Content.UsesModel()})
}

// GetHTTPLogs returns recent requests, newest first
func (h *Handlers) GetHTTPLogs(w http.ResponseWriter, req *http.Request) {
	limit, err := intParam(req.URL.Query(), "limit", defaultLogLimit, 1, 1000)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	h.write(w, req, http.StatusOK, log.GetHTTPLogBuffer().Recent(limit))
}

// ServeIndex serves the embedded page
func (h *Handlers) ServeIndex(w http.ResponseWriter, req *http.Request) {
	page, err := fs.ReadFile(h.controller.FS, "index.html")
	if err != nil {
		log.Errorw("error reading index.html", "error", err)
		http.Error(w, "page not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// parseDate accepts YYYY-MM-DD (read as noon UTC), RFC 3339, or nothing
// for the current instant. It returns the instant and its calendar date.
func (h *Handlers) parseDate(s string) (time.Time, string, error) {
	var t time.Time
	switch {
	case s == "":
		t = h.now().UTC()
	case len(s) == len(store.DateLayout):
		d, err := time.Parse(store.DateLayout, s)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", s)
		}
		t = d.Add(12 * time.Hour)
	default:
		d, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", s)
		}
		t = d
	}

	if t.Before(minDate) || !t.Before(maxDate) {
		return time.Time{}, "", errDateRange
	}
	return t, t.Format(store.DateLayout), nil
}

// observer reads ?lat=&lon=, falling back to the configured location
func (h *Handlers) observer(q url.Values) (lat, lon float64, ok bool, err error) {
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" && lonStr == "" {
		if o := h.controller.renderConfig.Observer; o != nil {
			return o.Lat, o.Lon, true, nil
		}
		return 0, 0, false, nil
	}
	if latStr == "" || lonStr == "" {
		return 0, 0, false, errors.New("lat and lon must be given together")
	}

	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, false, fmt.Errorf("invalid lat %q", latStr)
	}
	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, false, fmt.Errorf("invalid lon %q", lonStr)
	}
	return lat, lon, true, nil
}

func (h *Handlers) seed(q url.Values) (int64, error) {
	s := q.Get("seed")
	if s == "" {
		return h.controller.renderConfig.Seed, nil
	}
	seed, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seed %q", s)
	}
	return seed, nil
}

// renderer returns the shared renderer for a texture seed
func (h *Handlers) renderer(seed int64) *shading.Renderer {
	if h.controller.texture != nil {
		seed = 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.renderers[seed]; ok {
		return r
	}
	if len(h.renderers) >= maxRenderers {
		h.renderers = make(map[int64]*shading.Renderer)
	}

	tex := h.controller.texture
	if tex == nil {
		tex = shading.ProceduralTexture{Seed: seed}
	}
	r := shading.NewRenderer(tex, h.controller.renderConfig.Workers)
	h.renderers[seed] = r
	return r
}

func intParam(q url.Values, name string, def, lo, hi int) (int, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, lo, hi)
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data); err != nil {
		log.Errorw("error writing response", "path", req.URL.Path, "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	if err := h.formatter.WriteError(w, req, status, msg); err != nil {
		log.Errorw("error writing error response", "path", req.URL.Path, "error", err)
	}
}
