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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"github.com/samber/lo"
)

// Hasher computes deterministic content digests over a DeployConfig. It is
// the engine's change oracle: two documents that differ only in the
// iteration order of an associative field (ports, volumes, env, models,
// tags) must hash identically, while any change to a hashed field must
// change the digest.
type Hasher struct{}

// NewHasher returns a ready-to-use Hasher. It carries no state.
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashConfig computes the document-level hash: project identity, then the
// per-pod hashes in declared order (pod order matters here), then guardrail
// numeric fields if present.
func (h *Hasher) HashConfig(cfg *DeployConfig) string {
	sum := sha256.New()

	sum.Write([]byte(cfg.Project.Name))
	sum.Write([]byte(cfg.Project.Env))
	if cfg.Project.Region != "" {
		sum.Write([]byte(cfg.Project.Region))
	}

	for _, pod := range cfg.Pods {
		sum.Write([]byte(h.HashPod(&pod)))
	}

	if cfg.Guardrails != nil {
		if cfg.Guardrails.MaxHourlyCost != nil {
			sum.Write(float64Bytes(*cfg.Guardrails.MaxHourlyCost))
		}
		if cfg.Guardrails.MaxGPUs != nil {
			sum.Write(int64Bytes(int64(*cfg.Guardrails.MaxGPUs)))
		}
	}

	return hex.EncodeToString(sum.Sum(nil))
}

// HashPod computes the per-pod hash described in full by SPEC_FULL.md §4.1.
// Field order is load-bearing: it must match exactly, since it is part of
// the digest's definition, not an implementation detail.
func (h *Hasher) HashPod(pod *PodSpec) string {
	sum := sha256.New()

	sum.Write([]byte(pod.Name))

	sum.Write([]byte(pod.GPU.Type))
	sum.Write(int64Bytes(int64(pod.GPU.Count)))
	if pod.GPU.MinVRAM != nil {
		sum.Write(int64Bytes(int64(*pod.GPU.MinVRAM)))
	}
	for _, fb := range pod.GPU.Fallback {
		sum.Write([]byte(fb))
	}

	ports := make([]int, len(pod.Ports))
	for i, p := range pod.Ports {
		ports[i] = p.Port
	}
	sort.Ints(ports)
	for _, p := range ports {
		sum.Write(int64Bytes(int64(p)))
	}

	volumes := append([]VolumeSpec(nil), pod.Volumes...)
	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Name < volumes[j].Name })
	for _, v := range volumes {
		sum.Write([]byte(v.Name))
		sum.Write([]byte(v.Mount))
		if v.Persistent {
			sum.Write([]byte{1})
		} else {
			sum.Write([]byte{0})
		}
		if v.SizeGB != nil {
			sum.Write(int64Bytes(int64(*v.SizeGB)))
		}
	}

	sum.Write([]byte(pod.Runtime.Image))

	envKeys := lo.Keys(pod.Runtime.Env)
	sort.Strings(envKeys)
	for _, k := range envKeys {
		sum.Write([]byte(k))
		sum.Write([]byte(pod.Runtime.Env[k]))
	}

	for _, arg := range pod.Runtime.Command {
		sum.Write([]byte(arg))
	}
	for _, arg := range pod.Runtime.Args {
		sum.Write([]byte(arg))
	}

	models := append([]ModelSpec(nil), pod.Models...)
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	for _, m := range models {
		sum.Write([]byte(m.ID))
		if m.Repo != "" {
			sum.Write([]byte(m.Repo))
		}
		sum.Write([]byte(m.Load.Engine))
		if m.Load.Quant != "" {
			sum.Write([]byte(m.Load.Quant))
		}
		if m.Load.MaxSeqLen != nil {
			sum.Write(int64Bytes(int64(*m.Load.MaxSeqLen)))
		}
	}

	tagKeys := lo.Keys(pod.Tags)
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		sum.Write([]byte(k))
		sum.Write([]byte(pod.Tags[k]))
	}

	return hex.EncodeToString(sum.Sum(nil))
}

// ShortHash returns the first 8 characters of a hash for display purposes.
func (h *Hasher) ShortHash(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}

// HashesMatch compares two hashes in constant time, so a provider tag
// round-trip can never leak digest contents through timing.
func HashesMatch(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func int64Bytes(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func float64Bytes(v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}
