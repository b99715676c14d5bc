package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"ukernel/boot"
	db "ukernel/debug"
	"ukernel/loader"
	"ukernel/param"
	"ukernel/serr"
	"ukernel/timer"
	"ukernel/usr"
	"ukernel/usr/apps"
)

type overrides []string

func (o *overrides) String() string {
	return strings.Join(*o, ",")
}

func (o *overrides) Set(kv string) error {
	*o = append(*o, kv)
	return nil
}

func main() {
	var opts overrides
	config := flag.String("config", "", "YAML file with kernel parameters")
	dir := flag.String("dir", "", "Load program images from this directory")
	prog := flag.String("prog", "usertests", "Program initproc spawns")
	flag.Var(&opts, "o", "Override a parameter, e.g. -o sched.policy=prio")
	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "Usage: %v [-config file] [-dir images] [-prog name] [-o key=value]...\n", os.Args[0])
		os.Exit(1)
	}

	conf := param.Conf.Copy()
	if *config != "" {
		c, err := param.ReadConfigFile(*config)
		if err != nil {
			db.DFatalf("ReadConfigFile %v err %v", *config, err)
		}
		conf = c
	}
	kvs, err := param.ParseOverrides(opts)
	if err != nil {
		db.DFatalf("ParseOverrides %v err %v", opts, err)
	}
	if err := conf.Override(kvs); err != nil {
		db.DFatalf("Override err %v", err)
	}

	rt := usr.NewRuntime()
	apps.Register(rt, *prog)
	var ld loader.Loader
	if *dir != "" {
		ld = loader.NewDirLoader(*dir)
	} else {
		ld = boot.Images(rt, conf.MM.PAGE_SIZE)
	}

	b, err := boot.BootUp(conf, ld, timer.NewMonotonic(), rt)
	if err != nil {
		db.DFatalf("BootUp err %v", err)
	}
	err = b.Run()
	fmt.Printf("kernel %v halted: turnaround %v\n", b.K.Id, b.K.Stats())
	if serr.IsErrCode(err, serr.TErrDeadlock) {
		db.DFatalf("deadlock: %v", err)
	}
	if err != nil {
		db.DFatalf("Run err %v", err)
	}
}
