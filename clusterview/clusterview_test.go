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

package clusterview_test

import (
	"testing"

	"github.com/tuclient/tuagent/clusterview"
)

func TestParseRoundTrip(t *testing.T) {
	v := clusterview.View{
		Cluster: "clusterA",
		Status:  "Running",
		Nodes: []clusterview.Node{
			{ID: "n1", Name: "node1", Status: "Running"},
			{ID: "n2", Name: "node2", Status: "Paused"},
		},
	}

	got, err := clusterview.Parse(v.ToValues())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cluster != v.Cluster || got.Status != v.Status {
		t.Fatalf("cluster/status not preserved: %+v", got)
	}
	if len(got.Nodes) != 2 || got.Nodes[0] != v.Nodes[0] || got.Nodes[1] != v.Nodes[1] {
		t.Fatalf("nodes not preserved: %+v", got.Nodes)
	}
}

func TestParseRejectsShortPayload(t *testing.T) {
	if _, err := clusterview.Parse([]interface{}{"clusterA"}); err == nil {
		t.Fatalf("expected an error for a short payload")
	}
}

func TestParseRejectsMalformedNode(t *testing.T) {
	payload := []interface{}{"clusterA", "Running", []interface{}{[]interface{}{"only-one-field"}}}
	if _, err := clusterview.Parse(payload); err == nil {
		t.Fatalf("expected an error for a malformed node tuple")
	}
}
