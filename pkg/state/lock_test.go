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

package state

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateHolderIDUnique(t *testing.T) {
	id1 := GenerateHolderID()
	id2 := GenerateHolderID()

	assert.NotEqual(t, id1, id2)
	assert.Contains(t, id1, fmt.Sprintf("%d", os.Getpid()))
}

func TestNewLockInfoNotExpired(t *testing.T) {
	info := NewLockInfo("test-holder")
	assert.Equal(t, "test-holder", info.Holder)
	assert.False(t, info.Expired(info.AcquiredAt))
}
