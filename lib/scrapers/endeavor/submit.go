package endeavor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.opentelemetry.io/otel/codes"
)

// HoursForm is the six-field hours payload posted for an entry. The
// client passes the values through without interpreting them.
type HoursForm map[string]string

// DefaultHoursForm reports a standard eight hour working day.
func DefaultHoursForm() HoursForm {
	return HoursForm{
		"horas_normais_horas":   "8",
		"horas_normais_minutos": "00",
		"horas_extras_horas":    "00",
		"horas_extras_minutos":  "00",
		"horas_dobro_horas":     "00",
		"horas_dobro_minutos":   "00",
	}
}

// Submit runs the four step submission workflow for one entry id. The
// portal expects prior pages in the sequence to have been visited, so
// the steps are strictly ordered and a failed step aborts the rest.
func (c *Client) Submit(ctx context.Context, id string, form HoursForm) error {
	ctx, span := tracer.Start(ctx, "client:Submit")
	defer span.End()

	if !c.hasSessionCookies() {
		span.SetStatus(codes.Error, ErrUnauthenticated.Error())
		return ErrUnauthenticated
	}

	escaped := url.QueryEscape(id)

	err := c.warmup(ctx, "/mobile_v2/tarefa.asp?app_id="+escaped)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "task page warm-up failed")
		return fmt.Errorf("submit %s: %w", id, err)
	}
	err = c.warmup(ctx, "/mobile_v2/apontamento.asp?hist=&app_id="+escaped)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "entry page warm-up failed")
		return fmt.Errorf("submit %s: %w", id, err)
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(form).
		Post("/mobile_v2/apontamento.asp?Action=Post&app_id=" + escaped)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post hours")
		return fmt.Errorf("submit %s: post hours: %w", id, err)
	}
	if err := ensureSuccess(res); err != nil {
		span.SetStatus(codes.Error, "submit request rejected")
		return fmt.Errorf("submit %s: post hours: %w", id, err)
	}

	res, err = c.Http.R().
		SetContext(ctx).
		Get("/mobile_v2/finalizar.asp?app_id=" + escaped)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to finalize")
		return fmt.Errorf("submit %s: finalize: %w", id, err)
	}
	if err := ensureSuccess(res); err != nil {
		span.SetStatus(codes.Error, "finalize request rejected")
		return fmt.Errorf("submit %s: finalize: %w", id, err)
	}
	return nil
}

// keep concurrent submissions from flooding the portal or running
// the local machine out of sockets
const maxInflightSubmissions = 4

// SubmitAll submits every unique id concurrently over the shared
// session. It never fails fast, each id is an independent unit of work
// on the portal with no cross-entry transactionality. The returned map
// holds exactly one outcome per unique id (nil on success) and the
// aggregate error joins the individual failures.
func (c *Client) SubmitAll(ctx context.Context, ids []string, form HoursForm) (map[string]error, error) {
	ctx, span := tracer.Start(ctx, "client:SubmitAll")
	defer span.End()

	if !c.hasSessionCookies() {
		span.SetStatus(codes.Error, ErrUnauthenticated.Error())
		return nil, ErrUnauthenticated
	}

	// submitting the same id twice has wasteful effects on the portal
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	outcomes := make(map[string]error, len(unique))
	mu := sync.Mutex{}
	wg := sync.WaitGroup{}
	sem := make(chan struct{}, maxInflightSubmissions)

	for _, id := range unique {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				outcomes[id] = ctx.Err()
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			err := c.Submit(ctx, id, form)

			mu.Lock()
			outcomes[id] = err
			mu.Unlock()
		}()
	}

	wg.Wait()

	var errlist []error
	for _, id := range unique {
		if err := outcomes[id]; err != nil {
			errlist = append(errlist, fmt.Errorf("id %s: %w", id, err))
		}
	}
	err := errors.Join(errlist...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "one or more submissions failed")
	}
	return outcomes, err
}
