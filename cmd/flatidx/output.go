package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/andreyvit/flatidx"
)

var (
	keyColor   = color.New(color.FgHiCyan)
	idColor    = color.New(color.FgHiGreen)
	countColor = color.New(color.FgHiYellow)
	errorColor = color.New(color.FgHiRed)
)

func printPairs(w io.Writer, pairs []flatidx.Pair) {
	for _, p := range pairs {
		fmt.Fprintf(w, "%s\t%s\n", keyColor.Sprint(p.Key), p.Value)
	}
}

func printIDs(w io.Writer, ids []string) {
	for _, id := range ids {
		fmt.Fprintln(w, idColor.Sprint(id))
	}
}
