// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leanclr/leanclr/internal/image"
	"github.com/leanclr/leanclr/internal/loader"
	"github.com/leanclr/leanclr/internal/sig"
)

var (
	all       bool
	verbose   bool
	dosHeader bool
	ntHeader  bool
	sections  bool
	clr       bool
	tables    bool
	fast      bool
)

func prettyPrint(buff []byte) string {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, buff, "", "\t"); err != nil {
		log.Println("JSON indent error: ", err)
		return string(buff)
	}
	return prettyJSON.String()
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// dumpImage loads a single managed PE/CLI image and prints whichever
// sections the dump command's flags asked for.
func dumpImage(filename string, cmd *cobra.Command) {
	log.Printf("processing %s", filename)

	pe, err := image.New(filename, &image.Options{Fast: fast})
	if err != nil {
		log.Printf("failed to open %s: %v", filename, err)
		return
	}
	defer pe.Close()

	if err := pe.Parse(); err != nil {
		log.Printf("failed to parse %s: %v", filename, err)
		return
	}

	wantDOS, _ := cmd.Flags().GetBool("dosheader")
	if wantDOS || all {
		b, _ := json.Marshal(pe.DOSHeader)
		fmt.Println(prettyPrint(b))
	}

	wantNT, _ := cmd.Flags().GetBool("ntheader")
	if wantNT || all {
		b, _ := json.Marshal(pe.NtHeader)
		fmt.Println(prettyPrint(b))
	}

	wantSections, _ := cmd.Flags().GetBool("sections")
	if wantSections || all {
		b, _ := json.Marshal(pe.Sections)
		fmt.Println(prettyPrint(b))
	}

	wantCLR, _ := cmd.Flags().GetBool("clr")
	if wantCLR || all {
		b, _ := json.Marshal(pe.CLR)
		fmt.Println(prettyPrint(b))
	}

	wantTables, _ := cmd.Flags().GetBool("tables")
	if wantTables {
		for idx, t := range pe.CLR.MetadataTables {
			fmt.Printf("%s: %d rows\n", image.MetadataTableIndexToString(idx), t.CountCols)
		}
	}
}

// loadClasses parses a single image and runs it through the C1-C3 loader,
// resolving every TypeDef row into internal/vm's class graph, then prints
// the resulting counts and assembly identity as proof the metadata tables
// actually feed the type system rather than sitting next to it unused.
func loadClasses(filename string) {
	log.Printf("loading %s", filename)

	pe, err := image.New(filename, &image.Options{})
	if err != nil {
		log.Printf("failed to open %s: %v", filename, err)
		return
	}
	defer pe.Close()

	if err := pe.Parse(); err != nil {
		log.Printf("failed to parse %s: %v", filename, err)
		return
	}

	ld := loader.NewLoader(pe, 0, sig.NewCache(0))

	classes, err := ld.LoadAll()
	if err != nil {
		log.Printf("failed to load classes from %s: %v", filename, err)
		return
	}

	identity, err := ld.AssemblyIdentity()
	if err != nil {
		log.Printf("failed to read assembly identity from %s: %v", filename, err)
	} else {
		fmt.Printf("assembly: %s\n", identity.DisplayName())
	}

	for _, ref := range ld.AssemblyRefIdentities() {
		fmt.Printf("  references: %s\n", ref.DisplayName())
	}

	fields, methods := 0, 0
	for _, c := range classes {
		fields += len(c.Fields)
		methods += len(c.Methods)
	}
	fmt.Printf("types: %d, fields: %d, methods: %d\n", len(classes), fields, methods)
}

func classesCmd(cmd *cobra.Command, args []string) {
	filePath := args[0]

	if !isDirectory(filePath) {
		loadClasses(filePath)
		return
	}

	var files []string
	filepath.Walk(filePath, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	for _, f := range files {
		loadClasses(f)
	}
}

func dump(cmd *cobra.Command, args []string) {
	filePath := args[0]

	if !isDirectory(filePath) {
		dumpImage(filePath, cmd)
		return
	}

	var files []string
	filepath.Walk(filePath, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	for _, f := range files {
		dumpImage(f, cmd)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "leanclr",
		Short: "A managed-bytecode execution runtime",
		Long:  "leanclr loads managed PE/CLI images, resolves their metadata, and interprets their bytecode",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("leanclr version 0.0.1")
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump <file|dir>",
		Short: "Dump a managed image's headers and CLR metadata",
		Long:  "Dump the PE headers, sections, and .NET metadata of one image or every image under a directory",
		Args:  cobra.MinimumNArgs(1),
		Run:   dump,
	}

	classesCommand := &cobra.Command{
		Use:   "classes <file|dir>",
		Short: "Resolve an image's TypeDef/Field/MethodDef tables into the class graph",
		Long:  "Load one image or every image under a directory and print the class, field, and method counts the loader resolved from its metadata tables",
		Args:  cobra.MinimumNArgs(1),
		Run:   classesCmd,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(classesCommand)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	dumpCmd.Flags().BoolVarP(&dosHeader, "dosheader", "", false, "dump the DOS header")
	dumpCmd.Flags().BoolVarP(&ntHeader, "ntheader", "", false, "dump the NT header")
	dumpCmd.Flags().BoolVarP(&sections, "sections", "", false, "dump section headers")
	dumpCmd.Flags().BoolVarP(&clr, "clr", "", false, "dump the CLR runtime header and metadata streams")
	dumpCmd.Flags().BoolVarP(&tables, "tables", "", false, "dump metadata table row counts")
	dumpCmd.Flags().BoolVarP(&all, "all", "", false, "dump everything")
	dumpCmd.Flags().BoolVarP(&fast, "fast", "", false, "skip metadata table parsing, headers only")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
