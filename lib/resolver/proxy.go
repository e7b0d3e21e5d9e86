// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
)

type entityProxy struct {
	reference  ref.Reference
	definition *Definition

	resolved bool
	entity   any
	ghost    bool
}

func (p *entityProxy) Reference() ref.Reference { return p.reference }
func (p *entityProxy) IsGhost() bool            { return p.ghost }

func (p *entityProxy) GhostRecord() Document {
	return p.definition.Ghost(p.reference.ID())
}

func (p *entityProxy) SystemRecord() (Document, bool) {
	if p.definition.System == nil {
		return nil, false
	}
	return p.definition.System(p.reference.ID())
}

func (p *entityProxy) Resolve(ctx context.Context) (any, error) {
	if p.resolved {
		return p.entity, nil
	}

	document, isSystem := p.SystemRecord()
	if !isSystem {
		var err error
		document, err = p.definition.Service.Read(ctx, p.reference.ID())
		if errors.Is(err, ErrEntityNotFound) {
			p.resolved = true
			p.ghost = true
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p.reference, err)
		}
	}

	entity, err := p.definition.Decode(document)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.reference, err)
	}
	p.resolved = true
	p.entity = entity
	return entity, nil
}

func (p *entityProxy) PickFields(identity permission.Identity, record Document) Document {
	if p.definition.Pick != nil {
		return p.definition.Pick(identity, record)
	}
	projected := make(Document, len(record))
	for key, value := range record {
		projected[key] = value
	}
	return projected
}
