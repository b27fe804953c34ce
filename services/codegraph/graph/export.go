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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrUnknownFormat is returned by Export for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Export formats.
const (
	FormatGraphML = "graphml"
	FormatGEXF    = "gexf"
)

// Export writes the generation's functions and resolved call edges to w
// for graph visualization tools.
//
// Node ids are function ids. Each distinct caller/callee pair is one edge
// carrying the line of its first call site.
func (g *Generation) Export(w io.Writer, format string) error {
	var doc any
	switch format {
	case FormatGraphML:
		doc = g.graphML()
	case FormatGEXF:
		doc = g.gexf()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// exportEdges returns one edge per resolved caller/callee pair, in function
// then call order.
func (g *Generation) exportEdges() []CallEdge {
	var out []CallEdge
	for _, fn := range g.Functions() {
		seen := make(map[string]bool)
		for _, e := range g.calls[fn.ID] {
			if e.Status != EdgeResolved || seen[e.CalleeID] {
				continue
			}
			seen[e.CalleeID] = true
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// GraphML
// =============================================================================

type graphMLDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLEdge struct {
	ID     string        `xml:"id,attr"`
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphMLData `xml:"data"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

func (g *Generation) graphML() graphMLDoc {
	doc := graphMLDoc{
		Xmlns: "http://graphml.graphdrawing.org/xmlns",
		Keys: []graphMLKey{
			{ID: "name", For: "node", AttrName: "name", AttrType: "string"},
			{ID: "file", For: "node", AttrName: "file", AttrType: "string"},
			{ID: "language", For: "node", AttrName: "language", AttrType: "string"},
			{ID: "line_start", For: "node", AttrName: "line_start", AttrType: "int"},
			{ID: "line_end", For: "node", AttrName: "line_end", AttrType: "int"},
			{ID: "line_number", For: "edge", AttrName: "line_number", AttrType: "int"},
		},
		Graph: graphMLGraph{ID: g.ProjectID(), EdgeDefault: "directed"},
	}
	for _, fn := range g.Functions() {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphMLNode{
			ID: fn.ID,
			Data: []graphMLData{
				{Key: "name", Value: fn.Name},
				{Key: "file", Value: fn.FilePath},
				{Key: "language", Value: fn.Language},
				{Key: "line_start", Value: strconv.Itoa(fn.LineStart)},
				{Key: "line_end", Value: strconv.Itoa(fn.LineEnd)},
			},
		})
	}
	for i, e := range g.exportEdges() {
		doc.Graph.Edges = append(doc.Graph.Edges, graphMLEdge{
			ID:     "e" + strconv.Itoa(i),
			Source: e.CallerID,
			Target: e.CalleeID,
			Data:   []graphMLData{{Key: "line_number", Value: strconv.Itoa(e.Line)}},
		})
	}
	return doc
}

// =============================================================================
// GEXF
// =============================================================================

type gexfDoc struct {
	XMLName xml.Name  `xml:"gexf"`
	Xmlns   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	Meta    gexfMeta  `xml:"meta"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfMeta struct {
	LastModified string `xml:"lastmodifieddate,attr"`
	Creator      string `xml:"creator"`
	Description  string `xml:"description"`
}

type gexfGraph struct {
	Mode            string           `xml:"mode,attr"`
	DefaultEdgeType string           `xml:"defaultedgetype,attr"`
	Attributes      []gexfAttributes `xml:"attributes"`
	Nodes           []gexfNode       `xml:"nodes>node"`
	Edges           []gexfEdge       `xml:"edges>edge"`
}

type gexfAttributes struct {
	Class      string          `xml:"class,attr"`
	Attributes []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNode struct {
	ID        string          `xml:"id,attr"`
	Label     string          `xml:"label,attr"`
	AttValues []gexfAttrValue `xml:"attvalues>attvalue"`
}

type gexfEdge struct {
	ID        string          `xml:"id,attr"`
	Source    string          `xml:"source,attr"`
	Target    string          `xml:"target,attr"`
	AttValues []gexfAttrValue `xml:"attvalues>attvalue"`
}

type gexfAttrValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

func (g *Generation) gexf() gexfDoc {
	doc := gexfDoc{
		Xmlns:   "http://www.gexf.net/1.3",
		Version: "1.3",
		Meta: gexfMeta{
			LastModified: g.BuiltAt().UTC().Format("2006-01-02"),
			Creator:      "codegraph",
			Description:  "Call graph of " + g.RootDir(),
		},
		Graph: gexfGraph{
			Mode:            "static",
			DefaultEdgeType: "directed",
			Attributes: []gexfAttributes{
				{Class: "node", Attributes: []gexfAttribute{
					{ID: "0", Title: "file", Type: "string"},
					{ID: "1", Title: "language", Type: "string"},
					{ID: "2", Title: "line_start", Type: "integer"},
					{ID: "3", Title: "line_end", Type: "integer"},
				}},
				{Class: "edge", Attributes: []gexfAttribute{
					{ID: "0", Title: "line_number", Type: "integer"},
				}},
			},
		},
	}
	for _, fn := range g.Functions() {
		doc.Graph.Nodes = append(doc.Graph.Nodes, gexfNode{
			ID:    fn.ID,
			Label: fn.Name,
			AttValues: []gexfAttrValue{
				{For: "0", Value: fn.FilePath},
				{For: "1", Value: fn.Language},
				{For: "2", Value: strconv.Itoa(fn.LineStart)},
				{For: "3", Value: strconv.Itoa(fn.LineEnd)},
			},
		})
	}
	for i, e := range g.exportEdges() {
		doc.Graph.Edges = append(doc.Graph.Edges, gexfEdge{
			ID:        strconv.Itoa(i),
			Source:    e.CallerID,
			Target:    e.CalleeID,
			AttValues: []gexfAttrValue{{For: "0", Value: strconv.Itoa(e.Line)}},
		})
	}
	return doc
}
