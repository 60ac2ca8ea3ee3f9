package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"ticket-kiosk/internal/code"

	"github.com/klauspost/compress/gzip"
)

// Generates sample data for a local kiosk run:
//
//	data/list_valids.txt      codes 00000000000001..00000000000005 (completed)
//	data/usb/new_codes.txt.gz codes ...04..08, so two overlap the valid list
//
// Point INGEST_MOUNTS at data/usb to have the batch picked up.
func main() {
	dataDir := "data"
	mountDir := filepath.Join(dataDir, "usb")

	if err := os.MkdirAll(mountDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	valid := sampleCodes(1, 5)
	batch := sampleCodes(4, 8)

	if err := writeCodes(filepath.Join(dataDir, "list_valids.txt"), valid); err != nil {
		log.Fatalf("Failed to create valid list: %v", err)
	}
	if err := writeCodes(filepath.Join(mountDir, "new_codes.txt"+code.GzipSuffix), batch); err != nil {
		log.Fatalf("Failed to create batch: %v", err)
	}

	fmt.Println("Valid codes:")
	for _, c := range valid {
		fmt.Printf("  - %s\n", c)
	}
	fmt.Println("\nBatch codes (new_codes.txt.gz):")
	for _, c := range batch {
		fmt.Printf("  - %s\n", c)
	}
}

func sampleCodes(from, to int) []string {
	codes := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		c, ok := code.Complete(fmt.Sprintf("%014d", i))
		if !ok {
			log.Fatalf("Failed to complete payload %d", i)
		}
		codes = append(codes, c)
	}
	return codes
}

func writeCodes(path string, codes []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if filepath.Ext(path) != code.GzipSuffix {
		return code.WriteList(file, codes)
	}

	gzipWriter := gzip.NewWriter(file)
	if err := code.WriteList(gzipWriter, codes); err != nil {
		gzipWriter.Close()
		return err
	}
	return gzipWriter.Close()
}
