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

// Command undex translates Dalvik bytecode in dex or apk form into an
// equivalent Java jar file.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/xlab/treeprint"

	"github.com/undex-project/undex"
	"github.com/undex-project/undex/dex"
	"github.com/undex-project/undex/jvm"
	"github.com/undex-project/undex/mutf8"
)

var (
	output    string
	force     bool
	fast      bool
	verbosity int
)

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func loadDexes(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		fail(err)
	}
	dexes, err := undex.ExtractDexes(data)
	if err != nil {
		fail(err)
	}
	return dexes
}

func translate(cmd *cobra.Command, args []string) {
	commonlog.Configure(verbosity, nil)
	input := args[0]

	out := output
	if out == "" {
		base := filepath.Base(input)
		out = strings.TrimSuffix(base, filepath.Ext(base)) + "-undex.jar"
	}
	if !force {
		if _, err := os.Stat(out); err == nil {
			fail(fmt.Errorf("output file %s already exists, use --force to overwrite", out))
		}
	}

	opts := jvm.PRETTY
	if fast {
		opts = jvm.NONE
	}

	classes, ordkeys, errs := undex.Translate(opts, loadDexes(input)...)

	f, err := os.Create(out)
	if err != nil {
		fail(err)
	}
	defer f.Close()
	if err := undex.WriteJar(f, classes, ordkeys); err != nil {
		fail(err)
	}

	fmt.Printf("Output written to %s\n", out)
	fmt.Printf("%d classes translated successfully, %d classes had errors\n", len(ordkeys), len(errs))
	for name, err := range errs {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
	}
}

func dump(cmd *cobra.Command, args []string) {
	commonlog.Configure(verbosity, nil)

	for i, raw := range loadDexes(args[0]) {
		df, err := dex.Parse(raw)
		if err != nil {
			fail(err)
		}

		tree := treeprint.NewWithRoot(fmt.Sprintf("dex %d", i+1))
		for _, cls := range df.Classes {
			if len(args) > 1 && cls.Name != args[1] {
				continue
			}
			cls.ParseData()
			branch := tree.AddBranch(mutf8.Decode(cls.Name))
			if cls.Super != nil {
				branch.AddMetaBranch("extends", *cls.Super)
			}
			for _, iface := range cls.Interfaces {
				branch.AddMetaBranch("implements", iface)
			}
			fields := branch.AddBranch("fields")
			for _, field := range cls.Data.Fields {
				fields.AddNode(mutf8.Decode(field.Name) + " " + field.Desc)
			}
			methods := branch.AddBranch("methods")
			for _, method := range cls.Data.Methods {
				node := methods.AddNode(mutf8.Decode(method.Name) + method.Desc)
				if len(args) > 1 && method.Code != nil {
					node.AddNode(spew.Sdump(method.Code))
				}
			}
		}
		fmt.Println(tree.String())
	}
}

func main() {
	root := &cobra.Command{
		Use:   "undex <input.dex|input.apk>",
		Short: "Translate Dalvik bytecode to Java class files",
		Args:  cobra.ExactArgs(1),
		Run:   translate,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().StringVarP(&output, "output", "o", "", "output jar file (default: input name with -undex.jar)")
	root.Flags().BoolVarP(&force, "force", "f", false, "overwrite the output file if it exists")
	root.Flags().BoolVar(&fast, "fast", false, "skip optimization passes that make output more readable")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")

	dumpCmd := &cobra.Command{
		Use:   "dump <input.dex|input.apk> [class]",
		Short: "Print the structure of a dex file",
		Args:  cobra.RangeArgs(1, 2),
		Run:   dump,
	}
	root.AddCommand(dumpCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
