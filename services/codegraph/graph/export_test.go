// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture(t *testing.T) *Generation {
	return buildGeneration(t, []string{"main", "helper"}, []testCall{
		{from: "main", to: "helper"},
		{from: "main", to: "helper"},
		{from: "main", to: "print", status: EdgeUnresolved},
	})
}

func TestExport_GraphML(t *testing.T) {
	g := exportFixture(t)

	var buf bytes.Buffer
	require.NoError(t, g.Export(&buf, FormatGraphML))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))

	var doc graphMLDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Graph.Nodes, 2)
	assert.Equal(t, "app.go:1:main", doc.Graph.Nodes[0].ID)
	assert.Equal(t, "directed", doc.Graph.EdgeDefault)

	// Duplicate calls collapse and unresolved calls have no target.
	require.Len(t, doc.Graph.Edges, 1)
	e := doc.Graph.Edges[0]
	assert.Equal(t, "app.go:1:main", e.Source)
	assert.Equal(t, "app.go:2:helper", e.Target)
	assert.Equal(t, "1", e.Data[0].Value)
}

func TestExport_GEXF(t *testing.T) {
	g := exportFixture(t)

	var buf bytes.Buffer
	require.NoError(t, g.Export(&buf, FormatGEXF))

	var doc gexfDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "1.3", doc.Version)
	require.Len(t, doc.Graph.Nodes, 2)
	assert.Equal(t, "helper", doc.Graph.Nodes[1].Label)
	require.Len(t, doc.Graph.Edges, 1)
	assert.Equal(t, "app.go:2:helper", doc.Graph.Edges[0].Target)
}

func TestExport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := exportFixture(t).Export(&buf, "dot")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Zero(t, buf.Len())
}
