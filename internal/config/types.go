package config

// StoreConfig is the store-level configuration persisted in the database
// (options table, key="store_configs"). Managed by the settings service.
type StoreConfig struct {
	Store      StoreInfo         `json:"store"`
	Mail       MailOptions       `json:"mail_options"`
	Newsletter NewsletterOptions `json:"newsletter_options"`
	Backup     BackupOptions     `json:"backup_options"`
	S3         S3Options         `json:"s3_options"`
	Alerts     AlertOptions      `json:"alert_options"`
}

// StoreInfo identifies the storefront on outbound mail.
type StoreInfo struct {
	Name          string `json:"name"`
	WebURL        string `json:"web_url"`
	BusinessEmail string `json:"business_email"` // recipient of internal order notifications
}

type MailOptions struct {
	Enable   bool          `json:"enable"`
	From     string        `json:"from"`
	ReplyTo  string        `json:"reply_to"`
	SMTP     *SMTPConfig   `json:"smtp"`
	Resend   *ResendConfig `json:"resend"`
	Provider string        `json:"provider"` // "smtp" | "resend"
}

type SMTPConfig struct {
	User    string      `json:"user"`
	Pass    string      `json:"pass"`
	Options SMTPOptions `json:"options"`
}

type SMTPOptions struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ResendConfig struct {
	APIKey string `json:"api_key"`
}

type NewsletterOptions struct {
	Enable          bool   `json:"enable"`
	BatchSize       int    `json:"batch_size"`
	DiscountCode    string `json:"discount_code"`    // static welcome discount
	DiscountPercent int    `json:"discount_percent"` // shown in the welcome mail
}

type BackupOptions struct {
	Enable bool `json:"enable"`
}

type S3Options struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	PathStyleAccess bool   `json:"path_style_access"`
}

// AlertOptions configures ops push alerts via the Bark API.
type AlertOptions struct {
	Enable    bool   `json:"enable"`
	Key       string `json:"key"`
	ServerURL string `json:"server_url"`
}

// DefaultStoreConfig returns the configuration used before any settings are saved.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Store: StoreInfo{
			Name: "Casa Flora",
		},
		Newsletter: NewsletterOptions{
			Enable:          true,
			BatchSize:       50,
			DiscountCode:    "BIENVENIDA10",
			DiscountPercent: 10,
		},
	}
}
