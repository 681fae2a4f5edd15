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
package undex

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// WriteJar writes the translated classes as a jar. Entries are emitted in
// ordkeys order with fixed metadata so output is reproducible byte for byte.
func WriteJar(w io.Writer, classes map[string]string, ordkeys []string) error {
	zw := zip.NewWriter(w)
	for _, name := range ordkeys {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			return err
		}
		if _, err := io.WriteString(fw, classes[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

// ExtractDexes returns the dex buffers of an input file. Apks yield their
// classes.dex, classes2.dex, ... entries in order; anything else is assumed
// to be a bare dex file.
func ExtractDexes(data []byte) ([]string, error) {
	if len(data) < 4 || string(data[:2]) != "PK" {
		return []string{string(data)}, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	byName := map[string]*zip.File{}
	for _, f := range zr.File {
		byName[f.Name] = f
	}

	dexes := []string{}
	for i := 1; ; i++ {
		name := "classes.dex"
		if i > 1 {
			name = fmt.Sprintf("classes%d.dex", i)
		}
		f, ok := byName[name]
		if !ok {
			break
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		dexes = append(dexes, string(raw))
	}

	if len(dexes) == 0 {
		return nil, fmt.Errorf("no classes.dex found in archive")
	}
	return dexes, nil
}
