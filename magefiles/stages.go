//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Acquire downloads and extracts the raw OD_MetalDAM archive.
func Acquire() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath, "acquire")
}

// Crop crops raw images to drop the information band.
func Crop() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "crop")
}

// Metadata converts the metadata SQL dump to CSV.
func Metadata() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "metadata")
}

// Assemble registers the processed samples as the OD_MetalDAM dataset.
func Assemble() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "assemble")
}

// Pipeline runs every stage in order.
func Pipeline() {
	mg.SerialDeps(Acquire, Crop, Metadata, Assemble)
}
