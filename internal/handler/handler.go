// Package handler serves the claims HTTP API behind API Gateway (HTTP API, payload v2).
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kylejryan/claims-manager/internal/api"
	"github.com/kylejryan/claims-manager/internal/httpx"
	"github.com/kylejryan/claims-manager/internal/lifecycle"
	"github.com/kylejryan/claims-manager/internal/logging"
	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/s3io"
	"github.com/kylejryan/claims-manager/internal/validate"

	"github.com/aws/aws-lambda-go/events"
	"github.com/oklog/ulid/v2"
)

type (
	request  = events.APIGatewayV2HTTPRequest
	response = events.APIGatewayV2HTTPResponse
)

// Images configures damage photo upload presigning.
type Images struct {
	Presigner s3io.Presigner
	Bucket    string
	Region    string
	BaseURL   string
	TTL       time.Duration
}

// Options holds the optional collaborators of an API.
type Options struct {
	Images  *Images // nil disables the image-upload route
	Log     *slog.Logger
	Timeout time.Duration
	Backend string
}

// API holds the application state for the claims Lambda.
type API struct {
	engine  *lifecycle.Engine
	images  *Images
	log     *slog.Logger
	timeout time.Duration
	backend string
	routes  []route
}

type route struct {
	method  string
	pattern string
	fn      func(ctx context.Context, req request, params map[string]string) (response, error)
}

// New wires the routes onto engine.
func New(engine *lifecycle.Engine, opts Options) *API {
	a := &API{engine: engine, images: opts.Images, log: opts.Log, timeout: opts.Timeout, backend: opts.Backend}
	if a.log == nil {
		a.log = logging.Discard()
	}
	a.routes = []route{
		{http.MethodGet, "/health", a.health},
		{http.MethodGet, "/claims", a.listClaims},
		{http.MethodPost, "/claims", a.createClaim},
		{http.MethodGet, "/claims/{id}", a.getClaim},
		{http.MethodPatch, "/claims/{id}/status", a.updateStatus},
		{http.MethodPost, "/claims/{id}/damages", a.createDamage},
		{http.MethodPost, "/claims/{id}/damages/image-upload", a.imageUpload},
		{http.MethodGet, "/damages", a.listDamages},
		{http.MethodPost, "/damages", a.createDamage},
		{http.MethodPut, "/damages/{id}", a.updateDamage},
		{http.MethodDelete, "/damages/{id}", a.deleteDamage},
	}
	return a
}

// Handle is the Lambda entry point. It dispatches on the route key when API
// Gateway supplies one and on method and raw path otherwise ($default route).
func (a *API) Handle(ctx context.Context, req request) (response, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	r, params, ok := a.match(req)
	if !ok {
		return httpx.Error(http.StatusNotFound, "route not found")
	}
	resp, err := r.fn(ctx, req, params)
	if err != nil {
		status := httpx.Status(err)
		if status >= http.StatusInternalServerError {
			a.log.Error("request.failed", "route", r.method+" "+r.pattern, "status", status, "kind", models.KindOf(err), "err", err)
		} else {
			a.log.Debug("request.rejected", "route", r.method+" "+r.pattern, "status", status, "kind", models.KindOf(err))
		}
		return httpx.FromError(err)
	}
	return resp, nil
}

func (a *API) match(req request) (route, map[string]string, bool) {
	if req.RouteKey != "" && req.RouteKey != "$default" {
		for _, r := range a.routes {
			if r.method+" "+r.pattern == req.RouteKey {
				return r, req.PathParameters, true
			}
		}
	}
	method := req.RequestContext.HTTP.Method
	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}
	for _, r := range a.routes {
		if r.method != method {
			continue
		}
		if params, ok := matchPath(r.pattern, path); ok {
			return r, params, true
		}
	}
	return route{}, nil, false
}

// matchPath matches /a/{x}/b style patterns segment by segment.
func matchPath(pattern, path string) (map[string]string, bool) {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range ps {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if xs[i] == "" {
				return nil, false
			}
			params[p[1:len(p)-1]] = xs[i]
			continue
		}
		if p != xs[i] {
			return nil, false
		}
	}
	return params, true
}

func (a *API) health(context.Context, request, map[string]string) (response, error) {
	return httpx.JSON(http.StatusOK, api.HealthResponse{Status: "ok", Backend: a.backend})
}

func (a *API) listClaims(ctx context.Context, _ request, _ map[string]string) (response, error) {
	claims, err := a.engine.ListClaims(ctx)
	if err != nil {
		return response{}, err
	}
	return httpx.JSON(http.StatusOK, api.NewClaimResponses(claims))
}

func (a *API) createClaim(ctx context.Context, req request, _ map[string]string) (response, error) {
	var body api.CreateClaimRequest
	if err := decode(req, &body); err != nil {
		return response{}, err
	}
	c, err := a.engine.CreateClaim(ctx, body.Title, body.Description)
	if err != nil {
		return response{}, err
	}
	return httpx.JSON(http.StatusCreated, api.NewClaimResponse(c))
}

func (a *API) getClaim(ctx context.Context, _ request, params map[string]string) (response, error) {
	c, err := a.engine.GetClaim(ctx, params["id"])
	if err != nil {
		return response{}, err
	}
	return httpx.JSON(http.StatusOK, api.NewClaimResponse(c))
}

func (a *API) updateStatus(ctx context.Context, req request, params map[string]string) (response, error) {
	var body api.StatusUpdateRequest
	if err := decode(req, &body); err != nil {
		return response{}, err
	}
	target, err := models.ParseClaimStatus(body.Status)
	if err != nil {
		return response{}, err
	}
	c, err := a.engine.AttemptTransition(ctx, params["id"], target)
	if err != nil {
		return response{}, err
	}
	return httpx.JSON(http.StatusOK, api.NewClaimResponse(c))
}

func (a *API) listDamages(ctx context.Context, _ request, _ map[string]string) (response, error) {
	damages, err := a.engine.ListDamages(ctx)
	if err != nil {
		return response{}, err
	}
	return httpx.JSON(http.StatusOK, api.NewDamageResponses(damages))
}

// createDamage serves both POST /claims/{id}/damages and POST /damages?claim_id=.
func (a *API) createDamage(ctx context.Context, req request, params map[string]string) (response, error) {
	claimID := params["id"]
	if claimID == "" {
		claimID = strings.TrimSpace(req.QueryStringParameters["claim_id"])
	}
	if claimID == "" {
		return response{}, &models.Error{Kind: models.KindInvalidField, Field: "claim_id", Msg: "claim_id required"}
	}
	var in validate.DamageInput
	if err := decode(req, &in); err != nil {
		return response{}, err
	}
	d, err := a.engine.AttemptDamageCreate(ctx, claimID, in)
	if err != nil {
		return response{}, err
	}
	return httpx.JSON(http.StatusCreated, api.NewDamageResponse(d))
}

func (a *API) updateDamage(ctx context.Context, req request, params map[string]string) (response, error) {
	var in validate.DamageInput
	if err := decode(req, &in); err != nil {
		return response{}, err
	}
	d, err := a.engine.AttemptDamageUpdate(ctx, params["id"], in)
	if err != nil {
		return response{}, err
	}
	return httpx.JSON(http.StatusOK, api.NewDamageResponse(d))
}

func (a *API) deleteDamage(ctx context.Context, _ request, params map[string]string) (response, error) {
	if err := a.engine.AttemptDamageDelete(ctx, params["id"]); err != nil {
		return response{}, err
	}
	return httpx.NoContent()
}

// imageUpload presigns a PUT for a damage photo of a PENDING claim.
func (a *API) imageUpload(ctx context.Context, req request, params map[string]string) (response, error) {
	if a.images == nil {
		return httpx.Error(http.StatusNotImplemented, "image upload is not configured")
	}
	var body api.ImageUploadRequest
	if err := decode(req, &body); err != nil {
		return response{}, err
	}
	ct, ext, err := validate.ImageUpload(body.Filename, body.ContentType)
	if err != nil {
		return response{}, err
	}
	claimID := params["id"]
	if err := a.engine.EnsureEditable(ctx, claimID); err != nil {
		return response{}, err
	}

	imageID := ulid.Make().String()
	key := s3io.BuildImageKey(claimID, imageID, ext)
	meta := map[string]string{"claim_id": claimID, "image_id": imageID}
	url, ttl, err := s3io.PresignPut(ctx, a.images.Presigner, a.images.Bucket, key, ct, meta, a.images.TTL)
	if err != nil {
		return response{}, models.StorageFailure("presign_image_upload", err)
	}
	a.log.Info("damage.image.presigned", "claim_id", claimID, "s3_key", key)

	return httpx.JSON(http.StatusOK, api.ImageUploadResponse{
		ClaimID:       claimID,
		S3Key:         key,
		UploadURL:     url,
		ImageURL:      s3io.ObjectURL(a.images.BaseURL, a.images.Bucket, a.images.Region, key),
		ExpiresIn:     int(ttl.Seconds()),
		ContentType:   ct,
		UploadHeaders: s3io.UploadHeaders(claimID, imageID, ct),
	})
}

// decode parses a JSON body keeping numbers as json.Number, so price and score
// reach the normalizers with their original type.
func decode(req request, v any) error {
	body := req.Body
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return invalidBody(err)
		}
		body = string(b)
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return invalidBody(err)
	}
	return nil
}

func invalidBody(err error) error {
	return &models.Error{Kind: models.KindInvalidField, Field: "body", Msg: "invalid json", Err: err}
}
