// Copyright 2023 Greptime Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testPod(name string) PodSpec {
	return PodSpec{
		Name: name,
		GPU: GPUSpec{
			Type:  "NVIDIA A40",
			Count: 1,
		},
		Runtime: RuntimeSpec{
			Image: "test:latest",
		},
	}
}

func TestPodHashDeterministic(t *testing.T) {
	h := NewHasher()
	pod := testPod("test-pod")

	assert.Equal(t, h.HashPod(&pod), h.HashPod(&pod))
}

func TestDifferentPodsDifferentHash(t *testing.T) {
	h := NewHasher()
	pod1 := testPod("pod-1")
	pod2 := testPod("pod-2")

	assert.NotEqual(t, h.HashPod(&pod1), h.HashPod(&pod2))
}

func TestShortHash(t *testing.T) {
	h := NewHasher()
	short := h.ShortHash("abcdef1234567890abcdef1234567890")

	assert.Equal(t, "abcdef12", short)
	assert.Len(t, short, 8)
}

func TestHashesMatch(t *testing.T) {
	assert.True(t, HashesMatch("abc123", "abc123"))
	assert.False(t, HashesMatch("abc123", "abc124"))
	assert.False(t, HashesMatch("abc123", "abc12"))
}

func TestHashIgnoresMapAndSliceOrder(t *testing.T) {
	h := NewHasher()

	base := testPod("web")
	base.Runtime.Env = map[string]string{"A": "1", "B": "2"}
	base.Tags = map[string]string{"x": "1", "y": "2"}
	base.Ports = []PortSpec{{Port: 8080, Protocol: "http"}, {Port: 22, Protocol: "tcp"}}
	base.Volumes = []VolumeSpec{{Name: "b", Mount: "/b"}, {Name: "a", Mount: "/a"}}

	reordered := testPod("web")
	reordered.Runtime.Env = map[string]string{"B": "2", "A": "1"}
	reordered.Tags = map[string]string{"y": "2", "x": "1"}
	reordered.Ports = []PortSpec{{Port: 22, Protocol: "tcp"}, {Port: 8080, Protocol: "http"}}
	reordered.Volumes = []VolumeSpec{{Name: "a", Mount: "/a"}, {Name: "b", Mount: "/b"}}

	assert.Equal(t, h.HashPod(&base), h.HashPod(&reordered))
}

func TestHashChangesWithHashedField(t *testing.T) {
	h := NewHasher()

	pod := testPod("web")
	before := h.HashPod(&pod)

	pod.Runtime.Image = "test:v2"
	after := h.HashPod(&pod)

	assert.NotEqual(t, before, after)
}

func TestDocumentHashReflectsPodOrder(t *testing.T) {
	h := NewHasher()

	a := DeployConfig{
		Project: Project{Name: "proj", Env: "prod"},
		Pods:    []PodSpec{testPod("web"), testPod("worker")},
	}
	b := DeployConfig{
		Project: Project{Name: "proj", Env: "prod"},
		Pods:    []PodSpec{testPod("worker"), testPod("web")},
	}

	assert.NotEqual(t, h.HashConfig(&a), h.HashConfig(&b))
}
