// Package onnx adapts the three exported model graphs to the pipeline's
// model boundaries via ONNX Runtime.
package onnx

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// initRuntime prepares the shared ONNX Runtime environment. The library path
// can be pinned with ONNXRUNTIME_LIB_PATH; otherwise common install
// locations are probed.
func initRuntime() error {
	initOnce.Do(func() {
		libPath := os.Getenv("ONNXRUNTIME_LIB_PATH")
		if libPath == "" {
			libPath = "/usr/local/lib/libonnxruntime.so"
			if _, err := os.Stat("/usr/local/lib/libonnxruntime.dylib"); err == nil {
				libPath = "/usr/local/lib/libonnxruntime.dylib"
			} else if _, err := os.Stat("/usr/lib/libonnxruntime.so"); err == nil {
				libPath = "/usr/lib/libonnxruntime.so"
			}
		}
		ort.SetSharedLibraryPath(libPath)

		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("initialize onnxruntime (set ONNXRUNTIME_LIB_PATH if the library lives elsewhere): %w", err)
		}
	})
	return initErr
}
