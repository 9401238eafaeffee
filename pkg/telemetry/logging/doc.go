// Package logging builds the process-wide structured logger. Components
// derive their own loggers from it with a "component" attribute, so every
// line can be traced back to the stage of the connection pipeline that
// emitted it.
package logging
