/* Copyright 2026 The Midas Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package action

import (
	"context"
	"errors"
)

// NoMixer occurs when a Volume node fires but no Mixer was wired in.
var NoMixer = errors.New("no mixer available")

// VolumeRunner drives a Mixer from the node's "in" value.
type VolumeRunner struct {
	Mixer Mixer
}

func (r *VolumeRunner) Run(ctx context.Context, inv Invocation) error {
	if r.Mixer == nil {
		return NoMixer
	}

	level, have := inv.Inputs["in"]
	if !have {
		// A trigger wired into a volume node fires with no value.
		// Nothing sensible to do.
		return nil
	}

	if level < 0 {
		level = 0
	} else if 1 < level {
		level = 1
	}

	sink := inv.Config.String("sink", "")
	return r.Mixer.SetLevel(ctx, sink, level)
}
