// Package gateway batches and dispatches decrypt requests to the boundary
// service, applies transform pipelines locally, and reports which fields
// actually required true decryption so callers can emit access events.
package gateway

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"vaultcore/internal/boundary"
	"vaultcore/internal/platform/logger"
	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/view"
)

var tracer = otel.Tracer("vaultcore/internal/vault/gateway")

// boundaryConcurrency caps simultaneous outstanding boundary calls,
// independent of how many fields are requested.
const boundaryConcurrency = 4

// Request asks for one field, optionally post-processed by a transform
// pipeline.
type Request struct {
	Kind       models.DataIdentifier
	Transforms Pipeline
}

// Result maps each populated requested kind to its (transformed) value.
// Requested kinds absent from the vault are simply absent from Values.
type Result struct {
	Values map[models.DataIdentifier]string

	// RequiredDecrypt lists the kinds that crossed the boundary, for callers
	// that emit access events only on true decryption.
	RequiredDecrypt []models.DataIdentifier
}

// Gateway dispatches decrypt batches against one boundary client.
type Gateway struct {
	client boundary.Client
	log    *logger.Logger
}

// New wires a gateway over the boundary client.
func New(client boundary.Client, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{client: client, log: log}
}

// Decrypt resolves the requested fields from the view. Plaintext fields are
// served locally; sealed and large sealed payloads are chunked and
// dispatched to the boundary with bounded concurrency. A boundary failure
// fails the whole call with no partial results.
func (g *Gateway) Decrypt(ctx context.Context, v *view.View, reqs []Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "gateway.Decrypt",
		trace.WithAttributes(attribute.Int("requests", len(reqs))))
	defer span.End()

	// Malformed pipelines fail the call before anything is dispatched.
	pipelines := make(map[models.DataIdentifier]Pipeline, len(reqs))
	for _, req := range reqs {
		if err := req.Transforms.Validate(); err != nil {
			return nil, err
		}
		if _, ok := pipelines[req.Kind]; !ok {
			pipelines[req.Kind] = req.Transforms
		}
	}

	result := &Result{Values: make(map[models.DataIdentifier]string)}
	var sealed []boundary.SealedItem
	var large []boundary.LargeItem

	for kind, pipeline := range pipelines {
		e, ok := v.Get(kind)
		if !ok || e.Value == nil {
			continue
		}
		switch e.Value.Class() {
		case models.ClassPlaintext:
			result.Values[kind] = pipeline.Apply(e.Value.PData)
		case models.ClassSealed:
			sealed = append(sealed, boundary.SealedItem{Ref: string(kind), Sealed: e.Value.EData})
		case models.ClassLargeSealed:
			large = append(large, boundary.LargeItem{Ref: string(kind), DocRef: e.Value.DocRef})
		}
	}

	decrypted, err := g.dispatch(ctx, v.Vault().EPrivateKey, sealed, large)
	if err != nil {
		g.log.Error().Err(err).Int("sealed", len(sealed)).Int("large", len(large)).
			Msg("boundary decrypt failed")
		return nil, err
	}

	for ref, plain := range decrypted {
		kind := models.DataIdentifier(ref)
		result.Values[kind] = pipelines[kind].Apply(string(plain))
		result.RequiredDecrypt = append(result.RequiredDecrypt, kind)
	}
	sort.Slice(result.RequiredDecrypt, func(i, j int) bool {
		return result.RequiredDecrypt[i] < result.RequiredDecrypt[j]
	})
	return result, nil
}

// dispatch fans chunked boundary calls out under the concurrency cap and
// merges results. Large payloads use a separate retrieval path, so their
// chunks never mix with small ones.
func (g *Gateway) dispatch(ctx context.Context, sealedVaultKey []byte, sealed []boundary.SealedItem, large []boundary.LargeItem) (map[string][]byte, error) {
	out := make(map[string][]byte, len(sealed)+len(large))
	if len(sealed) == 0 && len(large) == 0 {
		return out, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(boundaryConcurrency)
	var mu sync.Mutex

	merge := func(res map[string][]byte) {
		mu.Lock()
		defer mu.Unlock()
		for ref, plain := range res {
			out[ref] = plain
		}
	}

	for start := 0; start < len(sealed); start += boundary.MaxBatchSize {
		chunk := sealed[start:min(start+boundary.MaxBatchSize, len(sealed))]
		eg.Go(func() error {
			res, err := g.client.BatchDecrypt(ctx, sealedVaultKey, chunk)
			if err != nil {
				return err
			}
			merge(res)
			return nil
		})
	}
	for start := 0; start < len(large); start += boundary.MaxBatchSize {
		chunk := large[start:min(start+boundary.MaxBatchSize, len(large))]
		eg.Go(func() error {
			res, err := g.client.BatchDecryptLarge(ctx, sealedVaultKey, chunk)
			if err != nil {
				return err
			}
			merge(res)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
