// Package config handles simulation configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Every section has defaults (see Default), so a file only needs to name
// the values it changes.
package config
