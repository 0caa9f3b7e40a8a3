package config

import "time"

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = int(cfg.Server.RateLimit) + 1
	}
	if cfg.Labels.Path == "" {
		cfg.Labels.Path = "/usr/local/var/kagami/data/tiny-imagenet-200/words.txt"
	}

	img := &cfg.Catalogs.Image
	if img.Name == "" {
		img.Name = "image"
	}
	if img.Path == "" {
		img.Path = "/usr/local/var/kagami/data/catalogs/image.kgc"
	}
	if img.Metric == "" {
		img.Metric = "l2"
	}
	if img.Assets.BasePath == "" {
		img.Assets.BasePath = "/usr/local/var/kagami/data/tiny-imagenet-200"
	}
	if len(img.Assets.Prefix) == 0 {
		img.Assets.Prefix = []string{"train"}
	}

	txt := &cfg.Catalogs.Text
	if txt.Name == "" {
		txt.Name = "text"
	}
	if txt.Metric == "" {
		txt.Metric = "cosine"
	}
	if txt.Assets.BasePath == "" {
		txt.Assets.BasePath = "/usr/local/var/kagami/data/tiny-imagenet-200/train"
	}

	for _, c := range []*CatalogConfig{img, txt} {
		if c.Source == "" {
			c.Source = SourceFile
		}
		if len(c.Assets.Suffix) == 0 {
			c.Assets.Suffix = []string{"images"}
		}
		if c.Assets.Extension == "" {
			c.Assets.Extension = ".JPEG"
		}
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.CategoryLimit == 0 {
		cfg.Search.CategoryLimit = 5
	}
	if cfg.Search.TextLimit == 0 {
		cfg.Search.TextLimit = 10
	}

	if cfg.ObjectStore.Region == "" {
		cfg.ObjectStore.Region = "us-east-1"
	}

	if cfg.Encoder.Timeout == 0 {
		cfg.Encoder.Timeout = 10 * time.Second
	}
	if cfg.Encoder.CacheSize == 0 {
		cfg.Encoder.CacheSize = 1000
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}
