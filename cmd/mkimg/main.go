package main

import (
	"os"
	"path/filepath"

	db "ukernel/debug"
	"ukernel/loader"
	"ukernel/param"
	"ukernel/usr"
	"ukernel/usr/apps"
)

// Writes an image for every shipped program into the directory given
// as the only argument, for use with ukernel -dir.
func main() {
	if len(os.Args) != 2 {
		db.DFatalf("Usage: %v <dir>", os.Args[0])
	}
	dir := os.Args[1]
	if err := os.MkdirAll(dir, 0755); err != nil {
		db.DFatalf("MkdirAll %v err %v", dir, err)
	}
	rt := usr.NewRuntime()
	apps.Register(rt, "usertests")
	for _, n := range rt.Programs() {
		pn := filepath.Join(dir, n)
		if err := os.WriteFile(pn, loader.BuildImage(n, param.Conf.MM.PAGE_SIZE), 0644); err != nil {
			db.DFatalf("WriteFile %v err %v", pn, err)
		}
	}
}
