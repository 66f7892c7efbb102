/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package clusterview decodes the Cluster View entity: the snapshot a
// gateway attaches to a CLUSTER_STATUS_REPLY, relayed verbatim by the
// Session State Machine to whichever local CLI requester asked for it.
package clusterview

import "fmt"

// Node is one member of the cluster as reported by the gateway.
type Node struct {
	ID     string
	Name   string
	Status string
}

// View is the Cluster View entity of the data model: cluster name,
// cluster status, and the per-node breakdown.
type View struct {
	Cluster string
	Status  string
	Nodes   []Node
}

// Parse decodes the payload elements of a CLUSTER_STATUS_REPLY that
// follow the requester id: [cluster_name, cluster_status, nodes[]], each
// node itself a 3-element [id, name, status] array.
func Parse(rest []interface{}) (View, error) {
	if len(rest) < 3 {
		return View{}, fmt.Errorf("cluster view payload needs 3 elements, got %d", len(rest))
	}
	cluster, ok := rest[0].(string)
	if !ok {
		return View{}, fmt.Errorf("cluster name must be a string, got %T", rest[0])
	}
	status, ok := rest[1].(string)
	if !ok {
		return View{}, fmt.Errorf("cluster status must be a string, got %T", rest[1])
	}
	rawNodes, ok := rest[2].([]interface{})
	if !ok {
		return View{}, fmt.Errorf("node list must be an array, got %T", rest[2])
	}

	nodes := make([]Node, len(rawNodes))
	for i, rn := range rawNodes {
		tuple, ok := rn.([]interface{})
		if !ok || len(tuple) < 3 {
			return View{}, fmt.Errorf("node %d: expected a 3-element array, got %T", i, rn)
		}
		id, ok1 := tuple[0].(string)
		name, ok2 := tuple[1].(string)
		st, ok3 := tuple[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return View{}, fmt.Errorf("node %d: id/name/status must be strings", i)
		}
		nodes[i] = Node{ID: id, Name: name, Status: st}
	}

	return View{Cluster: cluster, Status: status, Nodes: nodes}, nil
}

// ToValues renders the View back into the wire shape Parse accepts, used
// by tests and by a gateway-side stub.
func (v View) ToValues() []interface{} {
	nodes := make([]interface{}, len(v.Nodes))
	for i, n := range v.Nodes {
		nodes[i] = []interface{}{n.ID, n.Name, n.Status}
	}
	return []interface{}{v.Cluster, v.Status, nodes}
}
