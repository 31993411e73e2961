package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker              string
	MQTTClientIDCalibration string
	MQTTClientIDProducer    string
	MQTTClientIDConsole     string
	MQTTClientIDWeb         string
	MQTTClientIDDisplay     string

	// Topics
	TopicSensorFrame string
	TopicSensorLine  string
	TopicMotion      string
	TopicLog         string

	// Telemetry serial link (bluetooth module on the robot)
	SerialPort     string
	SerialBaudRate int

	// Control timing
	TickFrequencyHz int // control loop frequency
	ScanPeriodTicks int // ADC injected scan period, in control ticks
	SettleLogTicks  int // default settle log duration after a profile

	// Encoders
	CountsPerMeter   float64
	LeftEncoderSign  int
	RightEncoderSign int

	// Motor drive
	PWMPeriod     int     // duty range is [0, PWMPeriod]
	FullDutySpeed float64 // wheel speed in m/s at full duty (feedforward slope)

	// Motion limits (defaults, restorable after overrides)
	LinearAcceleration  float64
	LinearDeceleration  float64
	MaxLinearSpeed      float64
	AngularAcceleration float64
	MaxAngularSpeed     float64

	// Robot geometry
	WheelTrack    float64 // distance between wheel contact points, meters
	CellDimension float64 // maze cell side, meters
	WallWidth     float64
	MouseHead     float64 // nose to axle center
	MouseTail     float64 // tail to axle center

	// Distance sensors raw-to-meters transform coefficients
	SensorGainA   float64
	SensorOffsetB float64

	// Battery divider injected rank (1..4) for the boot check
	BatteryADCChannel int

	// Board pins (periph.io names)
	MotorLeftForwardPin   string
	MotorLeftBackwardPin  string
	MotorRightForwardPin  string
	MotorRightBackwardPin string
	PWMLeftPin            string
	PWMRightPin           string
	EncoderLeftAPin       string
	EncoderLeftBPin       string
	EncoderRightAPin      string
	EncoderRightBPin      string
	ADCI2CBus             string

	// Producer
	PublishInterval int // milliseconds between MQTT frame publishes

	// Web server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with the robot's baked-in values, used by
// the simulated rig and by tests that do not load a config file. The numbers
// match the target board: 1 kHz control tick, 0..1000 PWM duty, 921600 baud
// telemetry link.
func Default() *Config {
	return &Config{
		MQTTBroker:              "tcp://localhost:1883",
		MQTTClientIDCalibration: "mousecore-calibration",
		MQTTClientIDProducer:    "mousecore-producer",
		MQTTClientIDConsole:     "mousecore-console",
		MQTTClientIDWeb:         "mousecore-web",
		MQTTClientIDDisplay:     "mousecore-display",

		TopicSensorFrame: "mousecore/sensors/frame",
		TopicSensorLine:  "mousecore/sensors/line",
		TopicMotion:      "mousecore/motion",
		TopicLog:         "mousecore/log",

		SerialBaudRate: 921600,

		TickFrequencyHz: 1000,
		ScanPeriodTicks: 1,
		SettleLogTicks:  2000,

		CountsPerMeter:   58000,
		LeftEncoderSign:  1,
		RightEncoderSign: -1,

		PWMPeriod:     1000,
		FullDutySpeed: 1.2,

		LinearAcceleration:  5.0,
		LinearDeceleration:  5.0,
		MaxLinearSpeed:      0.5,
		AngularAcceleration: 32 * 3.141592653589793,
		MaxAngularSpeed:     4 * 3.141592653589793,

		WheelTrack:    0.078,
		CellDimension: 0.18,
		WallWidth:     0.012,
		MouseHead:     0.044,
		MouseTail:     0.048,

		SensorGainA:   1.8,
		SensorOffsetB: 1.0,

		BatteryADCChannel: 4,

		PublishInterval:       100,
		WebServerPort:         8080,
		DisplayUpdateInterval: 200,
	}
}

// Load reads the configuration file and returns a Config struct. Keys not
// present in the file keep their Default() values.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CALIBRATION":
		c.MQTTClientIDCalibration = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SENSOR_FRAME":
		c.TopicSensorFrame = value
	case "TOPIC_SENSOR_LINE":
		c.TopicSensorLine = value
	case "TOPIC_MOTION":
		c.TopicMotion = value
	case "TOPIC_LOG":
		c.TopicLog = value

	// Serial telemetry
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Control timing
	case "TICK_FREQUENCY_HZ":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TICK_FREQUENCY_HZ %q: %w", value, err)
		}
		if hz <= 0 {
			return fmt.Errorf("TICK_FREQUENCY_HZ must be positive, got %d", hz)
		}
		c.TickFrequencyHz = hz
	case "SCAN_PERIOD_TICKS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SCAN_PERIOD_TICKS %q: %w", value, err)
		}
		if n <= 0 {
			return fmt.Errorf("SCAN_PERIOD_TICKS must be positive, got %d", n)
		}
		c.ScanPeriodTicks = n
	case "SETTLE_LOG_TICKS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SETTLE_LOG_TICKS %q: %w", value, err)
		}
		c.SettleLogTicks = n

	// Encoders
	case "COUNTS_PER_METER":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid COUNTS_PER_METER %q: %w", value, err)
		}
		if v <= 0 {
			return fmt.Errorf("COUNTS_PER_METER must be positive, got %v", v)
		}
		c.CountsPerMeter = v
	case "LEFT_ENCODER_SIGN":
		sign, err := parseSign(value)
		if err != nil {
			return fmt.Errorf("invalid LEFT_ENCODER_SIGN: %w", err)
		}
		c.LeftEncoderSign = sign
	case "RIGHT_ENCODER_SIGN":
		sign, err := parseSign(value)
		if err != nil {
			return fmt.Errorf("invalid RIGHT_ENCODER_SIGN: %w", err)
		}
		c.RightEncoderSign = sign

	// Motor drive
	case "PWM_PERIOD":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PWM_PERIOD %q: %w", value, err)
		}
		if n <= 0 {
			return fmt.Errorf("PWM_PERIOD must be positive, got %d", n)
		}
		c.PWMPeriod = n
	case "FULL_DUTY_SPEED":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid FULL_DUTY_SPEED %q: %w", value, err)
		}
		if v <= 0 {
			return fmt.Errorf("FULL_DUTY_SPEED must be positive, got %v", v)
		}
		c.FullDutySpeed = v

	// Motion limits
	case "LINEAR_ACCELERATION":
		return setPositiveFloat(&c.LinearAcceleration, key, value)
	case "LINEAR_DECELERATION":
		return setPositiveFloat(&c.LinearDeceleration, key, value)
	case "MAX_LINEAR_SPEED":
		return setPositiveFloat(&c.MaxLinearSpeed, key, value)
	case "ANGULAR_ACCELERATION":
		return setPositiveFloat(&c.AngularAcceleration, key, value)
	case "MAX_ANGULAR_SPEED":
		return setPositiveFloat(&c.MaxAngularSpeed, key, value)

	// Geometry
	case "WHEEL_TRACK":
		return setPositiveFloat(&c.WheelTrack, key, value)
	case "CELL_DIMENSION":
		return setPositiveFloat(&c.CellDimension, key, value)
	case "WALL_WIDTH":
		return setPositiveFloat(&c.WallWidth, key, value)
	case "MOUSE_HEAD":
		return setPositiveFloat(&c.MouseHead, key, value)
	case "MOUSE_TAIL":
		return setPositiveFloat(&c.MouseTail, key, value)

	// Sensor transform
	case "BATTERY_ADC_CHANNEL":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BATTERY_ADC_CHANNEL %q: %w", value, err)
		}
		if n < 1 || n > 4 {
			return fmt.Errorf("BATTERY_ADC_CHANNEL must be 1..4, got %d", n)
		}
		c.BatteryADCChannel = n
	case "SENSOR_GAIN_A":
		return setPositiveFloat(&c.SensorGainA, key, value)
	case "SENSOR_OFFSET_B":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SENSOR_OFFSET_B %q: %w", value, err)
		}
		c.SensorOffsetB = v

	// Pins
	case "MOTOR_LEFT_FORWARD_PIN":
		c.MotorLeftForwardPin = value
	case "MOTOR_LEFT_BACKWARD_PIN":
		c.MotorLeftBackwardPin = value
	case "MOTOR_RIGHT_FORWARD_PIN":
		c.MotorRightForwardPin = value
	case "MOTOR_RIGHT_BACKWARD_PIN":
		c.MotorRightBackwardPin = value
	case "PWM_LEFT_PIN":
		c.PWMLeftPin = value
	case "PWM_RIGHT_PIN":
		c.PWMRightPin = value
	case "ENCODER_LEFT_A_PIN":
		c.EncoderLeftAPin = value
	case "ENCODER_LEFT_B_PIN":
		c.EncoderLeftBPin = value
	case "ENCODER_RIGHT_A_PIN":
		c.EncoderRightAPin = value
	case "ENCODER_RIGHT_B_PIN":
		c.EncoderRightBPin = value
	case "ADC_I2C_BUS":
		c.ADCI2CBus = value

	// Producer
	case "PUBLISH_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_INTERVAL %q: %w", value, err)
		}
		if interval <= 0 {
			return fmt.Errorf("PUBLISH_INTERVAL must be positive, got %d", interval)
		}
		c.PublishInterval = interval

	// Web server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseSign(value string) (int, error) {
	sign, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", value, err)
	}
	if sign != 1 && sign != -1 {
		return 0, fmt.Errorf("must be 1 or -1, got %d", sign)
	}
	return sign, nil
}

func setPositiveFloat(dst *float64, key, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %v", key, v)
	}
	*dst = v
	return nil
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.CountsPerMeter == 0 {
		return fmt.Errorf("COUNTS_PER_METER is required")
	}
	if c.CellDimension == 0 {
		return fmt.Errorf("CELL_DIMENSION is required")
	}
	if c.TickFrequencyHz == 0 {
		return fmt.Errorf("TICK_FREQUENCY_HZ is required")
	}
	if c.PWMPeriod == 0 {
		return fmt.Errorf("PWM_PERIOD is required")
	}
	if c.MaxLinearSpeed > c.FullDutySpeed {
		return fmt.Errorf("MAX_LINEAR_SPEED (%v) exceeds FULL_DUTY_SPEED (%v)", c.MaxLinearSpeed, c.FullDutySpeed)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once so this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// InitGlobalDefaults initializes the global configuration with Default()
// values, for commands running against the simulated rig without a file.
func InitGlobalDefaults() {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig = Default()
	})
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
