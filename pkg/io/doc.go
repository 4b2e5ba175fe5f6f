// Package io provides JSON import and export for resolution graphs.
//
// # JSON Format
//
//	{
//	  "roots": ["flask>=3"],
//	  "nodes": [
//	    {"name": "click", "version": "8.1.7"},
//	    {"name": "flask", "version": "3.0.0", "source": "pypi"}
//	  ],
//	  "edges": [
//	    {"from": "flask", "to": "click", "requirement": "click>=8.1.3"}
//	  ]
//	}
//
// roots are the project's direct requirements. Nodes may also carry
// extras, requires_python, yanked and files. Every requirement is a PEP
// 508 string; each edge's "to" must equal its requirement's name.
//
// The export is deterministic (nodes and edges sorted) and round-trips:
// [ReadJSON] of [WriteJSON] output rebuilds an equal graph.
package io
