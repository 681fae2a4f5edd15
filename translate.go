// Copyright 2015 Google Inc. All Rights Reserved.
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

// Package undex translates Dalvik bytecode into Java class files.
package undex

import (
	"fmt"
	"runtime"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/undex-project/undex/dex"
	"github.com/undex-project/undex/jvm"
	"github.com/undex-project/undex/mutf8"
)

var log = commonlog.GetLogger("undex")

type unit struct {
	cls  dex.DexClass
	name string
}

// Translate converts every class in the given dex files into class file
// bytes, keyed by jar entry name. ordkeys preserves the definition order of
// the input, so repeated runs produce identical jars. Classes that fail to
// translate are reported in errs under their entry name and never affect
// the other classes. When the same class is defined more than once, the
// first definition wins.
func Translate(opts jvm.Options, rawdexes ...string) (classes map[string]string, ordkeys []string, errs map[string]error) {
	classes = map[string]string{}
	errs = map[string]error{}

	units := []unit{}
	seen := map[string]bool{}
	for i, raw := range rawdexes {
		df, err := dex.Parse(raw)
		if err != nil {
			errs[fmt.Sprintf("classes%d.dex", i+1)] = err
			continue
		}
		if !df.ChecksumOK {
			log.Warningf("dex file %d has a bad header checksum", i+1)
		}
		for _, cls := range df.Classes {
			// Class names are stored as MUTF-8, which is not valid UTF-8 for
			// supplementary characters. Decode so the jar entry name is.
			name := mutf8.Decode(cls.Name) + ".class"
			if seen[name] {
				log.Warningf("duplicate class %s, keeping the first definition", name)
				continue
			}
			seen[name] = true
			units = append(units, unit{cls, name})
		}
	}

	results := make([]string, len(units))
	unit_errs := make([]error, len(units))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range units {
		i := i
		g.Go(func() error {
			results[i], unit_errs[i] = jvm.ToClassFile(units[i].cls, opts)
			return nil
		})
	}
	g.Wait()

	for i, u := range units {
		if unit_errs[i] != nil {
			errs[u.name] = unit_errs[i]
			log.Errorf("failed to translate %s: %v", u.cls.Name, unit_errs[i])
			continue
		}
		log.Debugf("translated %s (%d bytes)", u.cls.Name, len(results[i]))
		classes[u.name] = results[i]
		ordkeys = append(ordkeys, u.name)
		if len(ordkeys)%1000 == 0 {
			log.Debugf("%d classes processed", len(ordkeys))
		}
	}
	return
}
