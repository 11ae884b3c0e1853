package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"rkunpack/rkimg"
	"rkunpack/rkimg/rkaf"
	"rkunpack/rkimg/rkfw"
)

type (
	Args struct {
		Unpack *UnpackCmd `arg:"subcommand:unpack"`
		Info   *InfoCmd   `arg:"subcommand:info"`
	}
	UnpackCmd struct {
		From  string `arg:"required" help:"path to firmware image" placeholder:"update.img"`
		To    string `arg:"required" help:"destination directory" placeholder:"unpacked/"`
		Force bool   `help:"unpack into a non-empty destination"`
	}
	InfoCmd struct {
		// the formats keep partition contents only inside the regions
		// themselves, so info still extracts into --to and only changes
		// what is printed
		From string `arg:"required" help:"path to firmware image" placeholder:"update.img"`
		To   string `arg:"required" help:"destination directory" placeholder:"unpacked/"`
		JSON bool   `help:"print the parsed metadata as JSON"`
	}
)

func (Args) Description() string {
	des := strings.Join(
		[]string{
			"A CLI utility to unpack Rockchip firmware update images:",
			"RKFW flashing wrappers and RKAF update packages alike.",
		},
		"\n",
	)
	des += "\n"
	return des
}

func CheckExistence(path string) bool {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	return err == nil
}

func CheckNonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

func StartUnpacking(from string, to string, force bool) {
	if !CheckExistence(from) {
		println("Source file does not exist!")
		return
	}
	if CheckNonEmptyDir(to) && !force {
		println("Destination directory is not empty. Please type the command again with --force to allow unpacking into it!")
		println("Explicit --force is needed to make sure that you paid attention not to mixing the output with existing files.")
		return
	}

	result, err := rkimg.Unpack(from, to)
	if err != nil {
		log.WithError(err).Error("unpacking failed")
		os.Exit(1)
	}
	report(result, to)
}

func StartReporting(from string, to string, asJSON bool) {
	if !CheckExistence(from) {
		println("Source file does not exist!")
		return
	}

	result, err := rkimg.Unpack(from, to)
	if err != nil {
		log.WithError(err).Error("unpacking failed")
		os.Exit(1)
	}
	if asJSON {
		resultBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.WithError(err).Error("marshalling metadata failed")
			os.Exit(1)
		}
		println(string(resultBytes))
		return
	}
	report(result, to)
}

func report(result *rkimg.Result, to string) {
	switch {
	case result.Rkfw != nil:
		reportRkfw(result.Rkfw)
	case result.Rkaf != nil:
		reportRkaf(result.Rkaf, to)
	}
}

func reportRkfw(info *rkfw.Info) {
	log.Info("RKFW signature detected")
	log.Infof("version: %s", info.Version)
	log.Infof("code field: 0x%08x", info.Code)
	buildDate := time.Unix(info.Timestamp, 0).UTC()
	log.Infof(
		"date: %s (Unix timestamp: %d)",
		buildDate.Format("2006-01-02 15:04:05"), info.Timestamp,
	)
	if info.ChipFamily == rkfw.ChipFamilyUnknown {
		log.Warnf("you got a brand new chip (%#x), congratulations!", info.ChipCode)
	}
	log.Infof("family: %s", info.ChipFamily)
	log.Infof(
		"%08x-%08x %-26s (size: %d)",
		info.BootOffset, info.BootOffset+info.BootSize-1,
		rkfw.BootFileName, info.BootSize,
	)
	log.Infof(
		"%08x-%08x %-26s (size: %d)",
		info.UpdateOffset, info.UpdateOffset+info.UpdateSize-1,
		rkfw.UpdateFileName, info.UpdateSize,
	)
}

func reportRkaf(info *rkaf.Info, to string) {
	log.Info("RKAF signature detected")
	log.Infof("filesize: %d", info.FileSize)
	if info.LengthMismatch {
		log.Warn("header length field cannot be correct, cannot check CRC")
	}
	log.Infof("manufacturer: %s", info.Manufacturer)
	log.Infof("model: %s", info.Model)
	lines := lo.Map(
		info.Partitions,
		func(partition rkaf.Partition, _ int) string {
			return fmt.Sprintf(
				"%08x-%08x %s",
				partition.PartOffset, partition.PartByteCount, partition.FullPath,
			)
		},
	)
	for _, line := range lines {
		log.Info(line)
	}
	log.Infof("partition metadata saved to: %s/%s", to, rkaf.MetadataFileName)
}

func Start() {
	args := Args{}
	arg.MustParse(&args)

	switch {
	case args.Unpack != nil:
		StartUnpacking(args.Unpack.From, args.Unpack.To, args.Unpack.Force)
	case args.Info != nil:
		StartReporting(args.Info.From, args.Info.To, args.Info.JSON)
	default:
		println("A subcommand is needed. Please type the command again with --help to see the usage!")
	}
}
