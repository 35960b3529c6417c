package opencti

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/byronlabs/vysion-cti/app/failure"
	"github.com/byronlabs/vysion-cti/app/stix"
)

// Client talks to the platform GraphQL API with a connector token.
type Client struct {
	baseURL     string
	token       string
	connectorID string
	httpClient  *http.Client

	labelsMu sync.Mutex
	labels   map[string]string
}

func NewClient(baseURL, token, connectorID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		connectorID: connectorID,
		httpClient:  httpClient,
		labels:      make(map[string]string),
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, op, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: HTTP error: %s", op, resp.Status)
	}

	var gr graphqlResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("%s: %s", op, strings.Join(msgs, "; "))
	}

	if out != nil {
		if len(gr.Data) == 0 || string(gr.Data) == "null" {
			return errors.New(op + ": empty data")
		}
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", op, err)
		}
	}

	return nil
}

const bundlePushMutation = `mutation StixBundlePush($connectorId: String!, $bundle: String!) {
  stixBundlePush(connectorId: $connectorId, bundle: $bundle)
}`

// SendBundle hands a bundle to the platform ingestion queue of the connector.
func (c *Client) SendBundle(ctx context.Context, bundle *stix.Bundle) error {
	serialized, err := bundle.Serialize()
	if err != nil {
		return failure.Submission("push bundle", bundle.ID, err)
	}

	vars := map[string]any{"connectorId": c.connectorID, "bundle": serialized}
	if err := c.do(ctx, "stixBundlePush", bundlePushMutation, vars, nil); err != nil {
		return failure.Submission("push bundle", bundle.ID, err)
	}

	slog.Debug("Bundle sent", "bundle", bundle.ID, "objects", bundle.Len())
	return nil
}

const fieldPatchMutation = `mutation StixCyberObservableEdit($id: ID!, $input: [EditInput]!) {
  stixCyberObservableEdit(id: $id) {
    fieldPatch(input: $input) { id }
  }
}`

func (c *Client) UpdateScore(ctx context.Context, entityID string, score int) error {
	vars := map[string]any{
		"id": entityID,
		"input": []map[string]any{
			{"key": "x_opencti_score", "value": []string{strconv.Itoa(score)}},
		},
	}
	if err := c.do(ctx, "fieldPatch", fieldPatchMutation, vars, nil); err != nil {
		return failure.Submission("update score", entityID, err)
	}
	return nil
}

const labelAddMutation = `mutation LabelAdd($input: LabelAddInput!) {
  labelAdd(input: $input) { id value }
}`

// EnsureLabel reads or creates a label and returns its id. Ids are cached per
// value for the lifetime of the client.
func (c *Client) EnsureLabel(ctx context.Context, value, color string) (string, error) {
	c.labelsMu.Lock()
	id, ok := c.labels[value]
	c.labelsMu.Unlock()
	if ok {
		return id, nil
	}

	input := map[string]any{"value": value}
	if color != "" {
		input["color"] = color
	}

	var out struct {
		LabelAdd *struct {
			ID string `json:"id"`
		} `json:"labelAdd"`
	}
	if err := c.do(ctx, "labelAdd", labelAddMutation, map[string]any{"input": input}, &out); err != nil {
		return "", failure.Submission("create label", value, err)
	}
	if out.LabelAdd == nil || out.LabelAdd.ID == "" {
		return "", failure.Submission("create label", value, errors.New("label could not be created"))
	}

	c.labelsMu.Lock()
	c.labels[value] = out.LabelAdd.ID
	c.labelsMu.Unlock()

	return out.LabelAdd.ID, nil
}

const relationAddMutation = `mutation StixCyberObservableRelationAdd($id: ID!, $input: StixRefRelationshipAddInput!) {
  stixCyberObservableEdit(id: $id) {
    relationAdd(input: $input) { id }
  }
}`

func (c *Client) addRef(ctx context.Context, entityID, toID, relationshipType string) error {
	vars := map[string]any{
		"id":    entityID,
		"input": map[string]any{"toId": toID, "relationship_type": relationshipType},
	}
	return c.do(ctx, "relationAdd", relationAddMutation, vars, nil)
}

func (c *Client) AddLabel(ctx context.Context, entityID, value string) error {
	labelID, err := c.EnsureLabel(ctx, value, "")
	if err != nil {
		return err
	}
	if err := c.addRef(ctx, entityID, labelID, "object-label"); err != nil {
		return failure.Submission("add label", value, err)
	}
	return nil
}

const externalReferenceAddMutation = `mutation ExternalReferenceAdd($input: ExternalReferenceAddInput!) {
  externalReferenceAdd(input: $input) { id }
}`

func (c *Client) AddExternalReference(ctx context.Context, entityID string, ref stix.ExternalReference) error {
	input := map[string]any{"source_name": ref.SourceName}
	if ref.URL != "" {
		input["url"] = ref.URL
	}
	if ref.Description != "" {
		input["description"] = ref.Description
	}

	var out struct {
		ExternalReferenceAdd *struct {
			ID string `json:"id"`
		} `json:"externalReferenceAdd"`
	}
	if err := c.do(ctx, "externalReferenceAdd", externalReferenceAddMutation, map[string]any{"input": input}, &out); err != nil {
		return failure.Submission("create external reference", ref.SourceName, err)
	}
	if out.ExternalReferenceAdd == nil || out.ExternalReferenceAdd.ID == "" {
		return failure.Submission("create external reference", ref.SourceName, errors.New("no id returned"))
	}

	if err := c.addRef(ctx, entityID, out.ExternalReferenceAdd.ID, "external-reference"); err != nil {
		return failure.Submission("add external reference", ref.SourceName, err)
	}
	return nil
}
