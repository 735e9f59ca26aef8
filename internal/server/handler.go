package server

import (
	"context"
	"image"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jcollins5513/bgcut"
	"github.com/jcollins5513/bgcut/internal/logger"
	"github.com/pkg/errors"
)

const pngType = "image/png"

// Handler serves the cutout and composite routes.
type Handler struct {
	method    string
	remover   bgcut.Remover
	fallback  bool
	fetcher   *bgcut.Fetcher
	cache     *resultCache
	maxUpload int64
}

// source is one decoded input together with the key its results are cached
// under.
type source struct {
	key string
	buf *bgcut.PixelBuffer
}

// Health reports liveness and cache usage.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Method:    h.method,
		CacheSize: h.cache.size(),
	})
}

// Cutout removes the background of the multipart "image" file, or of the
// image behind the "url" form field. With crop=true the result is trimmed
// to the subject.
func (h *Handler) Cutout(c *gin.Context) {
	ctx := c.Request.Context()
	src, err := h.source(c, "image", true)
	if err != nil {
		h.fail(c, err)
		return
	}

	crop := c.DefaultPostForm("crop", "false") == "true"
	key := src.key + ":cutout"
	if crop {
		key += ":crop"
	}
	if data, ok := h.cache.get(key); ok {
		logger.Entry(ctx).WithField("cache_key", key).Info("cache hit")
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, pngType, data)
		return
	}

	out, cacheable, err := h.cutout(ctx, src.buf)
	if err == nil && crop {
		out, err = bgcut.Crop(out, nil)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, key, out, cacheable)
}

// Composite cuts out the "image" file and places it over the "backdrop"
// file, returning an image the size of the cutout.
func (h *Handler) Composite(c *gin.Context) {
	ctx := c.Request.Context()
	src, err := h.source(c, "image", false)
	if err != nil {
		h.fail(c, err)
		return
	}
	backdrop, err := h.source(c, "backdrop", false)
	if err != nil {
		h.fail(c, err)
		return
	}

	key := src.key + ":composite:" + backdrop.key
	if data, ok := h.cache.get(key); ok {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, pngType, data)
		return
	}

	out, cacheable, err := h.cutout(ctx, src.buf)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, key, bgcut.Composite(out, backdrop.buf.Image()), cacheable)
}

// cutout runs the remover. When it fails and fallback is enabled the source
// comes back unchanged with cacheable false, so the next request retries.
func (h *Handler) cutout(ctx context.Context, buf *bgcut.PixelBuffer) (image.Image, bool, error) {
	out, err := h.remover.RemoveBackground(ctx, buf.Image())
	if err == nil {
		return out, true, nil
	}
	if !h.fallback || ctx.Err() != nil {
		return nil, false, err
	}
	logger.Entry(ctx).WithError(err).Warn("remover failed, returning the original")
	out, err = bgcut.Passthrough{}.RemoveBackground(ctx, buf.Image())
	return out, false, err
}

func (h *Handler) respond(c *gin.Context, key string, img image.Image, cacheable bool) {
	data, err := bgcut.NewPixelBuffer(img).EncodeBytes()
	if err != nil {
		h.fail(c, err)
		return
	}
	if !cacheable {
		c.Header("X-Cache", "BYPASS")
		c.Data(http.StatusOK, pngType, data)
		return
	}
	h.cache.set(key, data)
	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, pngType, data)
}

// source reads the multipart file named field. When allowURL is set and no
// file was sent, the "url" form field is fetched instead.
func (h *Handler) source(c *gin.Context, field string, allowURL bool) (*source, error) {
	file, err := c.FormFile(field)
	if err == nil {
		data, err := h.readUpload(file)
		if err != nil {
			return nil, err
		}
		buf, err := bgcut.LoadBytes(data)
		if err != nil {
			return nil, err
		}
		return &source{key: bytesMD5(data), buf: buf}, nil
	}

	url := c.PostForm("url")
	if !allowURL || url == "" {
		return nil, errBadRequest(errors.Errorf("missing %q file", field))
	}
	buf, err := h.fetcher.Fetch(c.Request.Context(), url)
	if err != nil {
		return nil, err
	}
	return &source{key: "url:" + bytesMD5([]byte(url)), buf: buf}, nil
}

func (h *Handler) readUpload(file *multipart.FileHeader) ([]byte, error) {
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		return nil, errTooLarge(errors.Errorf("upload of %d bytes exceeds %d", file.Size, h.maxUpload))
	}
	f, err := file.Open()
	if err != nil {
		return nil, errBadRequest(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errBadRequest(err)
	}
	return data, nil
}

type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func errBadRequest(err error) error {
	return &statusError{status: http.StatusBadRequest, err: err}
}

func errTooLarge(err error) error {
	return &statusError{status: http.StatusRequestEntityTooLarge, err: err}
}

// statusOf maps pipeline errors onto HTTP status codes.
func statusOf(err error) int {
	var (
		serr *statusError
		derr *bgcut.DecodeError
		ferr *bgcut.FetchError
	)
	switch {
	case errors.As(err, &serr):
		return serr.status
	case errors.As(err, &derr):
		return http.StatusBadRequest
	case errors.As(err, &ferr):
		return http.StatusBadGateway
	case errors.Is(err, bgcut.ErrNoSubject):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	log := logger.Entry(c.Request.Context()).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Warn("request rejected")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Message: http.StatusText(status),
		Error:   err.Error(),
	})
}
