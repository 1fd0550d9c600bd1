package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagOrViper prefers an explicitly set flag, then a configured viper key,
// then the flag's default.
func flagOrViper[T any](cmd *cobra.Command, flagName, viperKey string, fromFlag func(*pflag.FlagSet, string) (T, error), fromViper func(string) T) T {
	v, _ := fromFlag(cmd.Flags(), flagName)
	if cmd.Flags().Changed(flagName) {
		return v
	}
	if viperKey != "" && viper.IsSet(viperKey) {
		return fromViper(viperKey)
	}
	return v
}

func flagOrViperString(cmd *cobra.Command, flagName, viperKey string) string {
	return flagOrViper(cmd, flagName, viperKey, (*pflag.FlagSet).GetString, viper.GetString)
}

func flagOrViperBool(cmd *cobra.Command, flagName, viperKey string) bool {
	return flagOrViper(cmd, flagName, viperKey, (*pflag.FlagSet).GetBool, viper.GetBool)
}

func flagOrViperInt(cmd *cobra.Command, flagName, viperKey string) int {
	return flagOrViper(cmd, flagName, viperKey, (*pflag.FlagSet).GetInt, viper.GetInt)
}

func flagOrViperInt64(cmd *cobra.Command, flagName, viperKey string) int64 {
	return flagOrViper(cmd, flagName, viperKey, (*pflag.FlagSet).GetInt64, viper.GetInt64)
}

func flagOrViperDuration(cmd *cobra.Command, flagName, viperKey string) time.Duration {
	return flagOrViper(cmd, flagName, viperKey, (*pflag.FlagSet).GetDuration, viper.GetDuration)
}
