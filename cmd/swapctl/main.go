// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/vadorovsky/libblockdev/swap"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: swapctl [-label L] [-priority N] format|on|off|status <device>\n")
	fmt.Fprintf(os.Stderr, "       swapctl list\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	label := flag.String("label", "", "Label for the formatted swap space")
	priority := flag.Int("priority", -1, "Priority of the activated swap device (-1 for the kernel default)")
	flag.Parse()

	ctx := context.Background()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	if args[0] == "list" {
		entries, err := swap.List()
		if err != nil {
			log.Fatalf("Failed listing active swaps: %s", err)
		}

		for _, entry := range entries {
			fmt.Printf("%s\t%s\t%d\t%d\t%d\n", entry.Path, entry.Type, entry.Size, entry.Used, entry.Priority)
		}

		return
	}

	if len(args) != 2 {
		usage()
	}

	op, dev := args[0], args[1]

	switch op {
	case "format":
		if err := swap.Format(ctx, dev, swap.WithLabel(*label)); err != nil {
			log.Fatalf("Failed formatting %q: %s", dev, err)
		}

		log.Printf("Successfully formatted %q as swap", dev)
	case "on":
		if err := swap.On(ctx, dev, swap.WithPriority(*priority)); err != nil {
			log.Fatalf("Failed activating %q: %s", dev, err)
		}

		log.Printf("Successfully activated swap on %q", dev)
	case "off":
		if err := swap.Off(ctx, dev); err != nil {
			log.Fatalf("Failed deactivating %q: %s", dev, err)
		}

		log.Printf("Successfully deactivated swap on %q", dev)
	case "status":
		active, err := swap.Status(dev)
		if err != nil {
			log.Fatalf("Failed checking %q: %s", dev, err)
		}

		if active {
			fmt.Println("active")
		} else {
			fmt.Println("inactive")
		}
	default:
		usage()
	}
}
