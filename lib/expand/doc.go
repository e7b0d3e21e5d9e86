// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package expand replaces entity references in a page of result rows
// with projections of the referenced entities.
//
// An [Engine] is configured with the reference-valued fields to
// expand. [Engine.Expand] runs in four phases:
//
//   - collect: walk every field of every row and gather the
//     references, skipping rows where the field is absent or null
//   - group: partition the references by backing service and
//     deduplicate them, so each entity is fetched at most once per
//     page however many rows mention it
//   - fetch: call [resolver.Service.ReadMany] once per service with
//     the deduplicated ids; ids the service does not return become
//     ghosts
//   - expand: walk the rows again and write the projection of each
//     reference, picked for the requesting identity, under the row's
//     "expanded" key
//
// A page of N rows with F reference fields therefore costs one round
// trip per distinct service rather than N times F. Resolution never
// fails a page: unknown reference kinds and failed fetches degrade to
// ghost projections and are logged. Only the "expanded" key of a row
// is written; the canonical fields are left as they were.
package expand
