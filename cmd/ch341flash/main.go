package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/BertoldVdb/go-misc/httplog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"ch341compat/compat"
	"ch341compat/compatio"
	"ch341compat/detect"
	"ch341compat/flash"
	"ch341compat/flashapi"
)

func main() {
	list := flag.Bool("list", false, "List attached adapters and exit")
	device := flag.Uint("device", 0, "Adapter device index to use")
	chipSelect := flag.Uint("cs", 0, "SPI chip select to use")
	platform := flag.String("platform", "", "Use a native SPI port (e.g. /dev/spidev0.0) instead of the adapter")
	readPath := flag.String("read", "", "Read the flash into this file")
	writePath := flag.String("write", "", "Write this file to the flash")
	verifyPath := flag.String("verify", "", "Verify the flash against this file")
	erase := flag.Bool("erase", false, "Erase the entire chip")
	noVerify := flag.Bool("noverify", false, "Skip verification after writing")
	serve := flag.String("serve", "", "Serve the flasher HTTP API on this address instead")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")

	flag.Parse()

	if *list {
		devices := detect.Attached()
		if len(devices) == 0 {
			log.Println("No adapters found")
			return
		}
		for i, d := range devices {
			log.Printf("%d: %s", i, d)
		}
		return
	}

	logOut := log.Printf
	if !*verbose {
		logOut = nil
	}

	conn, cleanup, err := openConn(*platform, uint32(*device), uint32(*chipSelect), logOut)
	if err != nil {
		log.Println("Failed to open SPI connection:", err)
		os.Exit(1)
	}
	defer cleanup()

	prog := flash.New(conn, logOut)

	if *serve != "" {
		runServer(*serve, prog)
		return
	}

	chip, err := prog.Detect()
	if err != nil {
		log.Println("Chip detection failed:", err)
		os.Exit(1)
	}
	log.Println("Detected chip:", chip)

	switch {
	case *readPath != "":
		buf := make([]byte, chip.Size)
		if err := prog.Read(0, buf, progress("Reading")); err != nil {
			log.Println("Read failed:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*readPath, buf, 0644); err != nil {
			log.Println("Saving image failed:", err)
			os.Exit(1)
		}
		log.Printf("Saved %d bytes to %s", len(buf), *readPath)

	case *writePath != "":
		data, err := os.ReadFile(*writePath)
		if err != nil {
			log.Println("Loading image failed:", err)
			os.Exit(1)
		}
		if len(data) > chip.Size {
			log.Printf("Image is %d bytes but the chip holds only %d", len(data), chip.Size)
			os.Exit(1)
		}
		if err := prog.EraseRange(0, len(data), progress("Erasing")); err != nil {
			log.Println("Erase failed:", err)
			os.Exit(1)
		}
		if err := prog.Write(0, data, progress("Writing")); err != nil {
			log.Println("Write failed:", err)
			os.Exit(1)
		}
		if !*noVerify {
			if err := prog.Verify(0, data, progress("Verifying")); err != nil {
				log.Println("Verification failed:", err)
				os.Exit(1)
			}
		}
		log.Printf("Wrote %d bytes", len(data))

	case *verifyPath != "":
		data, err := os.ReadFile(*verifyPath)
		if err != nil {
			log.Println("Loading image failed:", err)
			os.Exit(1)
		}
		err = prog.Verify(0, data, progress("Verifying"))
		switch {
		case err == nil:
			log.Println("Verification passed")
		case errors.Is(err, flash.ErrMismatch):
			log.Println("Verification failed:", err)
			os.Exit(1)
		default:
			log.Println("Verification error:", err)
			os.Exit(1)
		}

	case *erase:
		log.Println("Erasing chip, this can take minutes on large parts")
		if err := prog.EraseChip(); err != nil {
			log.Println("Erase failed:", err)
			os.Exit(1)
		}
		log.Println("Chip erased")

	default:
		flag.Usage()
	}
}

// openConn builds the SPI connection: either the adapter through the
// compatibility layer, or a native port via periph when -platform is set.
func openConn(platform string, index, chipSelect uint32, logOut compat.LogFunc) (spi.Conn, func(), error) {
	if platform != "" {
		if _, err := host.Init(); err != nil {
			return nil, nil, err
		}
		port, err := spireg.Open(platform)
		if err != nil {
			return nil, nil, err
		}
		conn, err := port.Connect(15*physic.MegaHertz, spi.Mode0, 8)
		if err != nil {
			port.Close()
			return nil, nil, err
		}
		return conn, func() { port.Close() }, nil
	}

	shim := compat.New(logOut)
	if shim.OpenDevice(index) == compat.InvalidHandle {
		return nil, nil, errors.New("could not open the adapter (is the vendor driver installed?)")
	}
	return compatio.NewSPIConn(shim, index, chipSelect), func() { shim.CloseDevice(index) }, nil
}

// progress returns a callback printing whole-percent steps for one
// operation.
func progress(operation string) flash.ProgressFunc {
	last := -1
	return func(done, total int) {
		if total == 0 {
			return
		}
		pct := done * 100 / total
		if pct != last {
			last = pct
			log.Printf("%s: %d%%", operation, pct)
		}
	}
}

func runServer(address string, prog *flash.Programmer) {
	closeChan := make(chan os.Signal, 1)
	signal.Notify(closeChan, os.Interrupt)

	if chip, err := prog.Detect(); err != nil {
		log.Println("No chip detected yet:", err)
	} else {
		log.Println("Detected chip:", chip)
	}

	logger := httplog.HTTPLog{
		LogOut:     log.Printf,
		ServerName: "CH341Flash",
	}

	server := &http.Server{
		Addr:    address,
		Handler: logger.GetHandler(http.HandlerFunc(flashapi.New(prog).ServeHTTP)),

		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       30 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("Starting server on: http://%s", address)
		log.Println("Server stopped:", server.ListenAndServe())

		select {
		case closeChan <- nil:
		default:
		}
	}()

	<-closeChan
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	server.Shutdown(ctx)
	cancel()
}
