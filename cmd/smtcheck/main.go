package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"smtproxy/pkg/smt"
	"smtproxy/pkg/smt/z3"
	"smtproxy/pkg/solver"
	"smtproxy/pkg/types"
)

// AppConfig 命令行工具配置文件结构
type AppConfig struct {
	Z3      *z3.Config           `yaml:"z3" json:"z3"`
	Solver  *solver.Config       `yaml:"solver" json:"solver"`
	MaxTime types.FlexibleUint64 `yaml:"max_time_ms" json:"max_time_ms"`
}

// CheckReport 求解报告,-output时序列化为JSON
type CheckReport struct {
	File       string             `json:"file"`
	Result     string             `json:"result"`
	Elapsed    string             `json:"elapsed"`
	Attempts   int                `json:"attempts"`
	Assertions int                `json:"assertions"`
	Model      map[string]string  `json:"model,omitempty"`
	UnsatCore  []string           `json:"unsat_core,omitempty"`
	EngineInfo map[string]float64 `json:"engine_stats,omitempty"`
}

func main() {
	// 命令行参数
	var (
		filePath   = flag.String("file", "", "SMT-LIB2 file to check")
		configPath = flag.String("config", "", "YAML config file (optional)")
		outputPath = flag.String("output", "", "Write JSON report to file (optional)")
		retries    = flag.Int("retries", 0, "Retries on solver crash (0 = config default)")
		trackCore  = flag.Bool("track-core", false, "Track assertions for unsat core extraction")
		timeout    = flag.String("timeout", "", "Solver timeout, e.g. 30s (overrides config)")
		verbose    = flag.Bool("verbose", false, "Print engine statistics")
	)
	flag.Parse()

	if *filePath == "" {
		log.Fatal("SMT-LIB2 file is required (-file)")
	}

	cfg := loadConfig(*configPath)
	if *retries > 0 {
		cfg.Solver.NumRetries = *retries
	}
	if *trackCore {
		cfg.Solver.TrackUnsatCore = true
	}
	if *timeout != "" {
		cfg.Z3.Timeout = *timeout
	}

	backend, err := z3.NewBackend(cfg.Z3)
	if err != nil {
		log.Fatalf("Failed to create solver backend: %v", err)
	}
	defer backend.Close()

	proxy, err := solver.NewProxy(backend, cfg.Solver, log.Default())
	if err != nil {
		log.Fatalf("Failed to create solver proxy: %v", err)
	}
	defer proxy.Close()

	// 经代理装载,unsat core跟踪与断言日志对文件中的断言同样生效
	log.Printf("Loading problem: %s", *filePath)
	if err := proxy.AddFile(*filePath); err != nil {
		log.Fatalf("Failed to load %s: %v", *filePath, err)
	}

	start := time.Now()
	result, err := proxy.Check()
	if err != nil {
		log.Fatalf("Check failed: %v", err)
	}
	elapsed := time.Since(start)

	report := CheckReport{
		File:     *filePath,
		Result:   result.String(),
		Elapsed:  elapsed.String(),
		Attempts: proxy.Stats().LastAttempts,
	}
	if asserts, aerr := proxy.Assertions(); aerr == nil {
		report.Assertions = len(asserts)
	}

	fmt.Println("\n=== Check Result ===")
	fmt.Printf("Result: %s\n", result)
	fmt.Printf("Elapsed: %s\n", elapsed)
	fmt.Printf("Assertions: %d\n", report.Assertions)

	switch result {
	case smt.Sat:
		model, merr := proxy.Model()
		if merr != nil {
			log.Printf("Failed to retrieve model: %v", merr)
			break
		}
		dict := solver.ModelToDict(model)
		fmt.Println("\n=== Model ===")
		report.Model = make(map[string]string, len(dict))
		for name, val := range dict {
			fmt.Printf("  %s = %v\n", name, val)
			report.Model[name] = fmt.Sprintf("%v", val)
		}
	case smt.Unsat:
		if cfg.Solver.TrackUnsatCore {
			core, cerr := proxy.UnsatCore()
			if cerr != nil {
				log.Printf("Failed to retrieve unsat core: %v", cerr)
				break
			}
			fmt.Println("\n=== Unsat Core ===")
			for _, tag := range core {
				fmt.Printf("  %s\n", tag)
			}
			report.UnsatCore = core
		}
	}

	if *verbose {
		stats, serr := proxy.Statistics()
		if serr != nil {
			log.Printf("Failed to retrieve engine statistics: %v", serr)
		} else {
			fmt.Println("\n=== Engine Statistics ===")
			for key, val := range stats {
				fmt.Printf("  %s: %g\n", key, val)
			}
			report.EngineInfo = stats
		}
	}

	if *outputPath != "" {
		data, jerr := json.MarshalIndent(report, "", "  ")
		if jerr != nil {
			log.Printf("Failed to marshal report: %v", jerr)
		} else if werr := os.WriteFile(*outputPath, data, 0644); werr != nil {
			log.Printf("Failed to write report: %v", werr)
		} else {
			log.Printf("Report saved to: %s", *outputPath)
		}
	}
}

// loadConfig 加载yaml配置,未指定时返回默认配置
func loadConfig(path string) *AppConfig {
	cfg := &AppConfig{
		Z3:     z3.DefaultConfig(),
		Solver: solver.DefaultConfig(),
	}
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Fatalf("Failed to parse config %s: %v", path, err)
	}
	if cfg.Z3 == nil {
		cfg.Z3 = z3.DefaultConfig()
	}
	if cfg.Solver == nil {
		cfg.Solver = solver.DefaultConfig()
	}
	if !cfg.MaxTime.IsZero() && cfg.Z3.Timeout == "" {
		cfg.Z3.Timeout = fmt.Sprintf("%dms", cfg.MaxTime.Value())
	}
	return cfg
}
