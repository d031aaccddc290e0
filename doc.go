/*
Package vpdiff compares the baseline image stored in a verification point (VP) document
against a freshly captured image, and can accept the captured image as the new baseline.

A VP document is a loosely structured text file. The baseline image is a base64 payload
located between the `<Verification ` and `<Mask` anchors, and an optional `<Mask>...</Mask>`
region describes a rectangle which is either obscured (negative) or outlined (positive) in both
images before they are merged into a two frame looping GIF.

The package provides a command line interface, check the supported commands with:

	$ vpdiff --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"context"
		"fmt"

		"github.com/vpcompare/vpdiff"
	)

	func main() {
		c := vpdiff.NewComparator(vpdiff.DefaultConfig())

		cmp, err := c.Compare(context.Background(), "login_vp", "login.png")
		if err != nil {
			fmt.Printf("Error comparing images: %s", err.Error())
			return
		}
		defer cmp.Close()

		fmt.Println(cmp.ArtifactPath)
	}
*/
package vpdiff
