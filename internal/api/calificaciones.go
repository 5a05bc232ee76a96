package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brokernuam/calificaciones/internal/calificacion"
)

// ListCalificaciones fetches the collection narrowed by f.
func (c *Client) ListCalificaciones(ctx context.Context, f calificacion.Filter) ([]calificacion.Record, error) {
	var out []calificacion.Record
	if err := c.Get(ctx, f.Path(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCalificacion fetches one record by its backend identifier.
func (c *Client) GetCalificacion(ctx context.Context, id string) (calificacion.Record, error) {
	if err := checkID(id); err != nil {
		return calificacion.Record{}, err
	}
	var out calificacion.Record
	if err := c.Get(ctx, calificacion.ItemPath(id), &out); err != nil {
		return calificacion.Record{}, err
	}
	return out, nil
}

// CreateCalificacion posts r without its identifier and returns the created record.
func (c *Client) CreateCalificacion(ctx context.Context, r calificacion.Record) (calificacion.Record, error) {
	var out calificacion.Record
	if err := c.Post(ctx, calificacion.CollectionPath, r.WithoutID(), &out); err != nil {
		return calificacion.Record{}, err
	}
	return out, nil
}

// UpdateCalificacion replaces record id with r.
func (c *Client) UpdateCalificacion(ctx context.Context, id string, r calificacion.Record) (calificacion.Record, error) {
	if err := checkID(id); err != nil {
		return calificacion.Record{}, err
	}
	var out calificacion.Record
	if err := c.Put(ctx, calificacion.ItemPath(id), r, &out); err != nil {
		return calificacion.Record{}, err
	}
	return out, nil
}

// DeleteCalificacion removes record id.
func (c *Client) DeleteCalificacion(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return c.Delete(ctx, calificacion.ItemPath(id))
}

// PreviewCSV asks the backend how it would read the file, without importing it.
func (c *Client) PreviewCSV(ctx context.Context, filename string, content []byte) (calificacion.Preview, error) {
	var out calificacion.Preview
	if err := c.PostFile(ctx, calificacion.PreviewPath, calificacion.UploadField, filename, content, &out); err != nil {
		return calificacion.Preview{}, err
	}
	return out, nil
}

// BulkLoad commits the file. Any 2xx answer is a success; the summary is read when the
// body has the usual shape and is otherwise left zero.
func (c *Client) BulkLoad(ctx context.Context, filename string, content []byte) (calificacion.BulkResult, error) {
	var body []byte
	if err := c.PostFile(ctx, calificacion.BulkLoadPath, calificacion.UploadField, filename, content, &body); err != nil {
		return calificacion.BulkResult{}, err
	}
	var out calificacion.BulkResult
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		c.log.WithError(err).WithField("body", string(body)).Debug("bulk load summary not understood")
		return calificacion.BulkResult{}, nil
	}
	return out, nil
}

// Ping checks that the backend answers at the base URL. Any HTTP response counts as
// reachable except 5xx.
func (c *Client) Ping(ctx context.Context) (int, error) {
	err := c.Get(ctx, "", nil)
	status := StatusCode(err)
	switch {
	case err == nil:
		return 200, nil
	case status > 0 && status < 500:
		return status, nil
	default:
		return status, err
	}
}

func checkID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || id == calificacion.NewSentinel {
		return fmt.Errorf("api: %q is not a record identifier", id)
	}
	return nil
}
